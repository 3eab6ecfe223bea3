// Package disc implements the disc/partition engine: opening a disc
// container, enumerating its partitions across up to four partition
// tables, lazily walking each partition through its HEADER_LOADED →
// CRYPTO_READY → OPEN state machine, and exposing a cleartext/encrypted
// read view over a partition's data region.
//
// Disc-level layout offsets beyond the named structure sizes (disc
// header=0x100, boot=0x440, region=0x20) aren't pinned down to an
// absolute byte offset anywhere (only their own sizes are fixed) — this
// package places them sequentially starting at 0 (header, then boot
// block, then region block), the simplest layout consistent with every
// size constraint the real structures impose.
package disc

import (
	"fmt"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/format"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/logger"
)

var log = logger.Logger()

// Disc-level layout offsets; see the package doc comment.
const (
	discHeaderOff = 0
	bootBlockOff  = discHeaderOff + format.SizeDiscHeader
	regionOff     = bootBlockOff + format.SizeBootBlock
)

// State is a partition's position in the NEW→HEADER_LOADED→
// CRYPTO_READY→OPEN→{INVALID} state machine.
type State int

const (
	StateNew State = iota
	StateHeaderLoaded
	StateCryptoReady
	StateOpen
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateHeaderLoaded:
		return "HEADER_LOADED"
	case StateCryptoReady:
		return "CRYPTO_READY"
	case StateOpen:
		return "OPEN"
	default:
		return "INVALID"
	}
}

// Partition is one entry of a disc's partition tables, progressively
// materialized as it advances through State.
type Partition struct {
	State State
	Type  format.PartitionType

	// AbsOffset is the partition's absolute byte offset on the disc
	// (the start of its ticket).
	AbsOffset int64

	// PTabIdx is the index (0-3) of the partition table slot this
	// partition was discovered under.
	PTabIdx int

	Ticket *format.Ticket
	Header *format.PartitionHeader
	TMD    *format.TMD
	Certs  []format.Cert
	H3     []byte

	TitleKey [16]byte
	Tree     *crypto.PartitionHashTree

	// BootID6 holds the first three id6 characters decoded from cluster 0
	// of the partition's own data region once CRYPTO_READY→OPEN succeeds.
	BootID6 [3]byte

	// Warnings accumulates non-fatal issues (H3/content-hash mismatch,
	// boot-id mismatch) that still allow reads.
	Warnings []string

	disc *Disc
}

// Disc is an opened GC/Wii image: its header/boot/region blocks plus
// every partition discovered across its up to-four partition tables.
type Disc struct {
	Container image.Container
	Header    *format.DiscHeader
	Boot      *format.BootBlock
	Region    *format.Region

	Partitions []*Partition

	keys    *crypto.KeyRing
	patches []patch
}

func readAt(c image.Container, off int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := c.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("disc: read %d bytes at %#x: %w", size, off, err)
	}
	return buf, nil
}

// OpenDisc reads a disc's header/boot/region blocks and enumerates its
// partition tables, loading each partition's header/ticket/TMD/H3 (the
// NEW→HEADER_LOADED transition) but not yet unwrapping title keys.
func OpenDisc(c image.Container, keys *crypto.KeyRing) (*Disc, error) {
	hdrRaw, err := readAt(c, discHeaderOff, format.SizeDiscHeader)
	if err != nil {
		return nil, err
	}
	header, err := format.DecodeDiscHeader(hdrRaw)
	if err != nil {
		return nil, fmt.Errorf("disc: header: %w", err)
	}

	bootRaw, err := readAt(c, bootBlockOff, format.SizeBootBlock)
	if err != nil {
		return nil, err
	}
	boot, err := format.DecodeBootBlock(bootRaw)
	if err != nil {
		return nil, fmt.Errorf("disc: boot block: %w", err)
	}

	regionRaw, err := readAt(c, regionOff, format.SizeRegion)
	if err != nil {
		return nil, err
	}
	region, err := format.DecodeRegion(regionRaw)
	if err != nil {
		return nil, fmt.Errorf("disc: region: %w", err)
	}

	d := &Disc{Container: c, Header: header, Boot: boot, Region: region, keys: keys}

	if header.IsWii() {
		if err := d.loadPartitionTables(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// loadPartitionTables reads the four partition-table descriptors at
// format.PTabOffset, then each table's entries, loading every
// referenced partition's header/ticket/TMD/H3. When multiple slots
// reference the same partition offset, the first encountered wins.
func (d *Disc) loadPartitionTables() error {
	descRaw, err := readAt(d.Container, format.PTabOffset, format.MaxPartitionTables*8)
	if err != nil {
		return err
	}
	descs, err := format.DecodePTabDescriptors(descRaw)
	if err != nil {
		return fmt.Errorf("disc: partition table descriptors: %w", err)
	}

	seen := map[int64]bool{}
	for tabIdx, desc := range descs {
		if desc.Count == 0 {
			continue
		}
		entriesRaw, err := readAt(d.Container, desc.ByteOffset(), int(desc.Count)*8)
		if err != nil {
			log.Warnw("disc: skipping unreadable partition table", "error", err)
			continue
		}
		entries, err := format.DecodePTabEntries(entriesRaw, int(desc.Count))
		if err != nil {
			log.Warnw("disc: skipping malformed partition table", "error", err)
			continue
		}
		for _, e := range entries {
			off := e.ByteOffset()
			if seen[off] {
				continue
			}
			seen[off] = true
			p := d.loadPartitionHeader(off, e.Type)
			p.PTabIdx = tabIdx
			d.Partitions = append(d.Partitions, p)
		}
	}
	return nil
}

// loadPartitionHeader performs the NEW→HEADER_LOADED transition for
// the partition starting at abs: reads the ticket, partition header,
// TMD, and H3 block, validating sizes. A fatal error marks the
// partition INVALID but still returns it (allowing the caller to
// report it rather than silently dropping it from the disc).
func (d *Disc) loadPartitionHeader(abs int64, t format.PartitionType) *Partition {
	p := &Partition{State: StateNew, Type: t, AbsOffset: abs, disc: d}

	tikRaw, err := readAt(d.Container, abs, format.SizeTicket)
	if err != nil {
		p.fail(err)
		return p
	}
	tik, err := format.DecodeTicket(tikRaw)
	if err != nil {
		p.fail(fmt.Errorf("ticket: %w", err))
		return p
	}
	p.Ticket = tik

	headRaw, err := readAt(d.Container, abs+format.SizeTicket, format.SizePartitionHead)
	if err != nil {
		p.fail(err)
		return p
	}
	head, err := format.DecodePartitionHeader(headRaw)
	if err != nil {
		p.fail(fmt.Errorf("partition header: %w", err))
		return p
	}
	if err := head.ValidEnvelope(); err != nil {
		p.fail(err)
		return p
	}
	p.Header = head

	tmdRaw, err := readAt(d.Container, abs+head.TMDOffset(), int(head.TMDSize))
	if err != nil {
		p.fail(err)
		return p
	}
	tmd, err := format.DecodeTMD(tmdRaw)
	if err != nil {
		p.fail(fmt.Errorf("tmd: %w", err))
		return p
	}
	p.TMD = tmd

	certRaw, err := readAt(d.Container, abs+head.CertOffset(), int(head.CertSize))
	if err != nil {
		p.fail(err)
		return p
	}
	certs, err := format.ParseCertChain(certRaw)
	if err != nil {
		p.fail(fmt.Errorf("cert chain: %w", err))
		return p
	}
	p.Certs = certs

	h3, err := readAt(d.Container, abs+head.H3Offset(), format.SizeH3Block)
	if err != nil {
		p.fail(err)
		return p
	}
	p.H3 = h3

	if head.DataSize() < format.SizeCluster {
		p.fail(fmt.Errorf("partition data region %#x bytes is smaller than one cluster", head.DataSize()))
		return p
	}

	p.State = StateHeaderLoaded
	return p
}

func (p *Partition) fail(err error) {
	p.State = StateInvalid
	p.Warnings = append(p.Warnings, err.Error())
	log.Warnw("disc: partition marked invalid", "offset", fmt.Sprintf("%#x", p.AbsOffset), "error", err)
}

// unwrapCrypto performs HEADER_LOADED→CRYPTO_READY: unwraps the title
// key and compares the H3 table's hash against the TMD's content[0]
// hash, recording a mismatch as a warning rather than a fatal error —
// the partition stays usable for reads, with the mismatch surfaced via
// Warnings, since an outright INVALID would defeat VERIFY's purpose of
// reporting the mismatch.
func (p *Partition) unwrapCrypto(keys *crypto.KeyRing) error {
	if p.State != StateHeaderLoaded {
		return fmt.Errorf("disc: partition not in HEADER_LOADED state")
	}
	key, err := keys.UnwrapTitleKey(p.Ticket)
	if err != nil {
		p.fail(fmt.Errorf("title key: %w", err))
		return err
	}
	p.TitleKey = key

	sum := crypto.PartitionHashTree{H3Table: p.H3}
	if len(p.TMD.Contents) > 0 && !sum.VerifyContentHash(p.TMD.Contents[0].Hash) {
		p.Warnings = append(p.Warnings, "H3 table hash does not match TMD content[0].hash")
	}

	p.State = StateCryptoReady
	return nil
}

// openPartition performs CRYPTO_READY→OPEN: decrypts cluster 0 of the
// partition's data region and checks its embedded disc id against the
// outer disc header's id6 (first three characters).
func (p *Partition) openPartition() error {
	if p.State != StateCryptoReady {
		return fmt.Errorf("disc: partition not in CRYPTO_READY state")
	}
	clusterRaw, err := readAt(p.disc.Container, p.AbsOffset+p.Header.DataOffset(), format.SizeCluster)
	if err != nil {
		p.fail(err)
		return err
	}
	area, payload, err := crypto.DecryptCluster(clusterRaw, p.TitleKey)
	if err != nil {
		p.fail(err)
		return err
	}
	innerHeader, err := format.DecodeDiscHeader(payload[:format.SizeDiscHeader])
	if err != nil {
		p.fail(fmt.Errorf("partition boot id: %w", err))
		return err
	}
	copy(p.BootID6[:], innerHeader.ID6[:3])
	if p.disc.Header != nil && string(p.BootID6[:]) != string(p.disc.Header.ID6[:3]) {
		p.Warnings = append(p.Warnings, "partition boot id6 prefix does not match disc header id6")
	}
	_ = area // decoded hash area for cluster 0; verified lazily via ReadPart/VerifyCluster, not here.

	p.State = StateOpen
	return nil
}

// EnsureOpen drives a HEADER_LOADED partition all the way to OPEN (or
// INVALID), a convenience for callers that don't need to observe the
// intermediate CRYPTO_READY state.
func (p *Partition) EnsureOpen(keys *crypto.KeyRing) error {
	if p.State == StateHeaderLoaded {
		if err := p.unwrapCrypto(keys); err != nil {
			return err
		}
	}
	if p.State == StateCryptoReady {
		if err := p.openPartition(); err != nil {
			return err
		}
	}
	if p.State != StateOpen {
		return fmt.Errorf("disc: partition at %#x is %s, not OPEN", p.AbsOffset, p.State)
	}
	return nil
}

// clusterCount returns how many SizeCluster clusters make up the
// partition's data region.
func (p *Partition) clusterCount() int64 {
	return p.Header.DataSize() / format.SizeCluster
}

// ClusterCount exports clusterCount for callers outside this package
// (internal/pipeline's EDIT/DOLPATCH re-encrypt path) that need to
// iterate every cluster of a partition's data region.
func (p *Partition) ClusterCount() int64 { return p.clusterCount() }

// BuildHashTree decrypts every cluster of the partition's data region
// and rebuilds its full three-level hash tree, caching the result in
// Tree. This is the expensive, whole-partition counterpart to the
// cheap check unwrapCrypto already performs, hashing the stored H3 table
// against the TMD's content[0] hash; VERIFY uses it to localize a corruption to a
// specific cluster via PartitionHashTree.VerifyCluster.
func (p *Partition) BuildHashTree() (*crypto.PartitionHashTree, error) {
	if p.Tree != nil {
		return p.Tree, nil
	}
	if err := p.EnsureOpen(p.disc.keys); err != nil {
		return nil, err
	}
	n := p.clusterCount()
	payloads := make([][]byte, n)
	for i := int64(0); i < n; i++ {
		raw, err := readAt(p.disc.Container, p.AbsOffset+p.Header.DataOffset()+i*format.SizeCluster, format.SizeCluster)
		if err != nil {
			return nil, err
		}
		_, payload, err := crypto.DecryptCluster(raw, p.TitleKey)
		if err != nil {
			return nil, fmt.Errorf("disc: cluster %d: %w", i, err)
		}
		payloads[i] = payload
	}
	tree, err := crypto.BuildPartitionHashTree(payloads)
	if err != nil {
		return nil, err
	}
	p.Tree = tree
	return tree, nil
}

// ReadPart reads lenBytes bytes from the partition's data region
// starting at the 4-byte-unit offset off4. When decrypt is true, the
// returned bytes are the cleartext payload
// stream (clusters stripped of their hash areas); otherwise the raw
// encrypted clusters covering the requested range are returned
// unmodified (hash areas included, at cluster-aligned boundaries).
func (p *Partition) ReadPart(off4 uint32, lenBytes int, decrypt bool) ([]byte, error) {
	if p.State != StateOpen {
		if err := p.EnsureOpen(p.disc.keys); err != nil {
			return nil, err
		}
	}
	byteOff := int64(off4) * 4

	if !decrypt {
		firstCluster := byteOff / format.SizeCluster
		lastByte := byteOff + int64(lenBytes) - 1
		lastCluster := lastByte / format.SizeCluster
		raw, err := readAt(p.disc.Container, p.AbsOffset+p.Header.DataOffset()+firstCluster*format.SizeCluster,
			int((lastCluster-firstCluster+1)*format.SizeCluster))
		if err != nil {
			return nil, err
		}
		within := byteOff - firstCluster*format.SizeCluster
		return raw[within : within+int64(lenBytes)], nil
	}

	out := make([]byte, 0, lenBytes)
	cluster := byteOff / format.SizeClusterPayload
	within := byteOff % format.SizeClusterPayload
	for int64(len(out)) < int64(lenBytes) {
		if cluster >= p.clusterCount() {
			return nil, fmt.Errorf("disc: read_part past end of partition data region")
		}
		raw, err := readAt(p.disc.Container, p.AbsOffset+p.Header.DataOffset()+cluster*format.SizeCluster, format.SizeCluster)
		if err != nil {
			return nil, err
		}
		_, payload, err := crypto.DecryptCluster(raw, p.TitleKey)
		if err != nil {
			return nil, fmt.Errorf("disc: cluster %d: %w", cluster, err)
		}
		take := format.SizeClusterPayload - within
		remaining := int64(lenBytes) - int64(len(out))
		if take > remaining {
			take = remaining
		}
		out = append(out, payload[within:within+take]...)
		cluster++
		within = 0
	}
	return p.disc.applyPatches(p, off4, out), nil
}

// Selector is a tagged-union partition filter. Multiple selectors
// combine monotonically (union): SelectPartitions never narrows a
// previous selection, only widens it.
type Selector struct {
	All       bool
	None      bool
	Types     map[format.PartitionType]bool
	PTabIndex map[int]bool
	Index     map[int]bool
}

// SelectPartitions returns the subset of disc.Partitions matched by
// sel. An All selector (or no selector fields set at all) matches
// everything; None matches nothing and takes precedence over every
// other field set in the same Selector value.
func (d *Disc) SelectPartitions(sel Selector) []*Partition {
	if sel.None {
		return nil
	}
	if sel.All || (len(sel.Types) == 0 && len(sel.PTabIndex) == 0 && len(sel.Index) == 0) {
		return append([]*Partition(nil), d.Partitions...)
	}
	var out []*Partition
	for i, p := range d.Partitions {
		if sel.Types[p.Type] || sel.Index[i] || sel.PTabIndex[p.PTabIdx] {
			out = append(out, p)
		}
	}
	return out
}

// FileVisitKind distinguishes the kinds of entries IterateFiles
// reports.
type FileVisitKind int

const (
	VisitFile FileVisitKind = iota
	VisitDirEnter
	VisitDirLeave
	VisitSystemFile
	VisitPartitionHeader
)

// systemFileNames names the partition system files that IterateFiles
// reports as VisitSystemFile rather than VisitFile.
var systemFileNames = map[string]bool{
	"main.dol":      true,
	"boot.bin":      true,
	"bi2.bin":       true,
	"apploader.img": true,
	"fst.bin":       true,
	"h3.bin":        true,
}

// FileVisitor is invoked once per entry discovered by IterateFiles.
type FileVisitor func(kind FileVisitKind, path string, part *Partition, dataOff4 uint32, size uint32)

// IterateFiles walks each selected partition's FST, reporting its
// system files first (main.dol, boot.bin, bi2.bin, apploader.img,
// fst.bin, h3.bin), then the regular file/directory tree. pmode is
// accepted for API parity with the real tool's path-mode flag but does
// not change traversal order here — path rendering (absolute vs.
// partition-relative) is the caller's concern once it has the reported
// path string.
func (d *Disc) IterateFiles(parts []*Partition, visit FileVisitor, pmode int) error {
	_ = pmode
	for _, part := range parts {
		if err := part.EnsureOpen(d.keys); err != nil {
			return err
		}
		visit(VisitPartitionHeader, "", part, uint32(part.AbsOffset/4), format.SizePartitionHead)

		visit(VisitSystemFile, "boot.bin", part, uint32(part.Header.DataOffset()/4), format.SizeDiscHeader+format.SizeBootBlock)
		visit(VisitSystemFile, "bi2.bin", part, uint32((part.Header.DataOffset()+format.SizeDiscHeader+format.SizeBootBlock)/4), format.SizeRegion)
		visit(VisitSystemFile, "h3.bin", part, uint32(part.Header.H3Offset()/4), format.SizeH3Block)

		bootRaw, err := part.ReadPart(uint32(format.SizeDiscHeader/4), format.SizeBootBlock, true)
		if err != nil {
			return fmt.Errorf("disc: partition boot block: %w", err)
		}
		boot, err := format.DecodeBootBlock(bootRaw)
		if err != nil {
			return fmt.Errorf("disc: partition boot block: %w", err)
		}
		visit(VisitSystemFile, "main.dol", part, boot.MainExecOffset/4, 0)
		visit(VisitSystemFile, "fst.bin", part, boot.FSTOffset, boot.FSTSize*4)
		visit(VisitSystemFile, "apploader.img", part, uint32((format.SizeDiscHeader+format.SizeBootBlock)/4), 0)

		fstBytes, err := part.ReadPart(boot.FSTOffset, int(boot.FSTSize)*4, true)
		if err != nil {
			return fmt.Errorf("disc: fst: %w", err)
		}
		nodes, err := format.ParseFST(fstBytes)
		if err != nil {
			return fmt.Errorf("disc: fst: %w", err)
		}

		// WalkFST only calls visit on node entry; directory-leave events
		// are derived here from each directory's SubtreeEnd (the index
		// one past its last descendant, per FSTNode's doc comment): a
		// directory is left as soon as traversal reaches that index.
		type dirFrame struct {
			path string
			end  int
		}
		var stack []dirFrame
		format.WalkFST(nodes, '/', func(n format.FSTNode, path string) format.VisitResult {
			for len(stack) > 0 && n.Index >= stack[len(stack)-1].end {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				visit(VisitDirLeave, top.path, part, 0, 0)
			}
			if n.IsDir {
				visit(VisitDirEnter, path, part, 0, 0)
				stack = append(stack, dirFrame{path: path, end: n.SubtreeEnd})
			} else if systemFileNames[n.Name] {
				visit(VisitSystemFile, path, part, n.DataOff4, n.Size)
			} else {
				visit(VisitFile, path, part, n.DataOff4, n.Size)
			}
			return format.VisitContinue
		})
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			visit(VisitDirLeave, top.path, part, 0, 0)
		}
	}
	return nil
}

// UsageMap is a boolean array, one entry per disc-level sector of
// size format.SizeCluster, reporting whether that sector is reachable
// from the disc's structure (partition control area, FST-reachable
// clusters, hash-tree H3 sectors) or the disc header/partition-table
// region itself. Unmarked sectors are safe to skip during copy/
// compress.
type UsageMap []bool

// BuildUsageMap computes d's usage map at format.SizeCluster
// granularity.
func (d *Disc) BuildUsageMap() (UsageMap, error) {
	total := d.Container.Size()
	numSectors := (total + format.SizeCluster - 1) / format.SizeCluster
	usage := make(UsageMap, numSectors)

	mark := func(off, size int64) {
		if size <= 0 {
			return
		}
		start := off / format.SizeCluster
		end := (off + size - 1) / format.SizeCluster
		for s := start; s <= end && s < numSectors; s++ {
			if s >= 0 {
				usage[s] = true
			}
		}
	}

	mark(0, format.SizeDiscHeader)
	mark(format.PTabOffset, format.MaxPartitionTables*8)

	for _, p := range d.Partitions {
		mark(p.AbsOffset, format.SizePartitionEnvelope)
		if p.State == StateInvalid {
			continue
		}
		if err := p.EnsureOpen(d.keys); err != nil {
			continue
		}
		mark(p.AbsOffset+p.Header.H3Offset(), format.SizeH3Block)

		bootRaw, err := p.ReadPart(uint32(format.SizeDiscHeader/4), format.SizeBootBlock, true)
		if err != nil {
			continue
		}
		boot, err := format.DecodeBootBlock(bootRaw)
		if err != nil {
			continue
		}
		fstBytes, err := p.ReadPart(boot.FSTOffset, int(boot.FSTSize)*4, true)
		if err != nil {
			continue
		}
		nodes, err := format.ParseFST(fstBytes)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if n.IsDir {
				continue
			}
			cleartextOff := int64(n.DataOff4) * 4
			firstCluster := cleartextOff / format.SizeClusterPayload
			lastCluster := (cleartextOff + int64(n.Size) - 1) / format.SizeClusterPayload
			for c := firstCluster; c <= lastCluster; c++ {
				mark(p.AbsOffset+p.Header.DataOffset()+c*format.SizeCluster, format.SizeCluster)
			}
		}
	}
	return usage, nil
}
