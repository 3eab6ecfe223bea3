package pipeline

import (
	"fmt"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/werr"
)

// DiffKind classifies one DiffEntry into one of a small closed set of
// outcomes rather than a free-text message.
type DiffKind int

const (
	DiffOnlyInA DiffKind = iota
	DiffOnlyInB
	DiffSizeMismatch
	DiffContentMismatch
	DiffIdentical
)

func (k DiffKind) String() string {
	switch k {
	case DiffOnlyInA:
		return "only-in-a"
	case DiffOnlyInB:
		return "only-in-b"
	case DiffSizeMismatch:
		return "size-mismatch"
	case DiffContentMismatch:
		return "content-mismatch"
	default:
		return "identical"
	}
}

// DiffEntry is one FST path's comparison outcome between two discs.
type DiffEntry struct {
	Path string
	Kind DiffKind
}

// DiffOptions configures a DIFF run.
type DiffOptions struct {
	Selector      disc.Selector
	Keys          *crypto.KeyRing
	SkipIdentical bool // when true, DiffEntry.Kind == DiffIdentical is omitted from the result
}

// DiffResult is DiffDisc's report.
type DiffResult struct {
	Entries []DiffEntry
}

// Differs reports whether any non-identical entries were found.
func (r *DiffResult) Differs() bool {
	for _, e := range r.Entries {
		if e.Kind != DiffIdentical {
			return true
		}
	}
	return false
}

// DiffDisc compares every regular file reachable from pathA's and
// pathB's selected partitions by path, classifying each into one of
// DiffKind's buckets. Byte content is only read and compared when both
// sides have a same-sized file at the same path: a cheap structural
// check runs first, falling back to a content read only when sizes
// already agree.
func DiffDisc(pathA, pathB string, opts DiffOptions) (*DiffResult, error) {
	cA, filesA, err := collectFiles(pathA, opts.Selector, opts.Keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "reading side A")
	}
	defer cA.Close()

	cB, filesB, err := collectFiles(pathB, opts.Selector, opts.Keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "reading side B")
	}
	defer cB.Close()

	result := &DiffResult{}
	for path, a := range filesA {
		b, ok := filesB[path]
		if !ok {
			result.Entries = append(result.Entries, DiffEntry{Path: path, Kind: DiffOnlyInA})
			continue
		}
		kind, err := compareFileEntries(a, b)
		if err != nil {
			return nil, werr.Wrap(werr.KindIO, err, fmt.Sprintf("comparing %s", path))
		}
		if !(opts.SkipIdentical && kind == DiffIdentical) {
			result.Entries = append(result.Entries, DiffEntry{Path: path, Kind: kind})
		}
		delete(filesB, path)
	}
	for path := range filesB {
		result.Entries = append(result.Entries, DiffEntry{Path: path, Kind: DiffOnlyInB})
	}
	return result, nil
}

// fileEntry is one file discovered by IterateFiles, kept alive long
// enough to re-read its bytes for a content comparison.
type fileEntry struct {
	part     *disc.Partition
	dataOff4 uint32
	size     uint32
}

func compareFileEntries(a, b fileEntry) (DiffKind, error) {
	if a.size != b.size {
		return DiffSizeMismatch, nil
	}
	bufA, err := a.part.ReadPart(a.dataOff4, int(a.size), true)
	if err != nil {
		return DiffIdentical, err
	}
	bufB, err := b.part.ReadPart(b.dataOff4, int(b.size), true)
	if err != nil {
		return DiffIdentical, err
	}
	if len(bufA) != len(bufB) {
		return DiffSizeMismatch, nil
	}
	for i := range bufA {
		if bufA[i] != bufB[i] {
			return DiffContentMismatch, nil
		}
	}
	return DiffIdentical, nil
}

// collectFiles opens path and walks its selected partitions, returning
// the still-open container alongside the discovered files: each
// fileEntry's ReadPart call reads through the partition's disc, whose
// container must stay open until the caller is done comparing.
func collectFiles(path string, sel disc.Selector, keys *crypto.KeyRing) (image.Container, map[string]fileEntry, error) {
	c, err := image.Open(path, true)
	if err != nil {
		return nil, nil, err
	}

	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	parts := d.SelectPartitions(sel)

	out := map[string]fileEntry{}
	err = d.IterateFiles(parts, func(kind disc.FileVisitKind, path string, part *disc.Partition, dataOff4 uint32, size uint32) {
		if kind != disc.VisitFile {
			return
		}
		out[path] = fileEntry{part: part, dataOff4: dataOff4, size: size}
	}, 0)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, out, nil
}
