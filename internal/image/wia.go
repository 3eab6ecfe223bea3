package image

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/anchore/go-lzo"
	"github.com/ulikunitz/xz/lzma"

	"github.com/wiimm/witcore/internal/codec"
)

// WIA ("Wiimms ISO Archive") splits the logical disc into fixed-size
// groups, each independently compressed with a per-group codec
// selector, so a reader never has to decompress more than one group
// to serve a random-access read. This port supports NONE, LZMA, LZO,
// and BZIP2 — BZIP2 decoding via the standard library's compress/bzip2
// reader, BZIP2 encoding by shelling out to the system "bzip2" binary
// through internal/codec (the one external-process codec this module
// needs, since compress/bzip2 has no writer) — and omits WIA's LZMA2
// chunk kind, a strict superset of the plain LZMA this port already
// supports (see DESIGN.md for the format reference).
type wiaCodec byte

const (
	wiaCodecNone wiaCodec = iota
	wiaCodecLZMA
	wiaCodecLZO
	wiaCodecBZIP2
)

const (
	wiaMagic        = "WIA\x01"
	wiaHeaderLen     = 4 + 4 + 8 + 8 + 4 // magic, group size, logical size, group table offset, group count
	wiaGroupEntryLen = 8 + 4 + 4 + 1     // file offset, stored size, raw size, codec
)

type wiaGroup struct {
	fileOffset int64
	storedSize int64
	rawSize    int64
	codec      wiaCodec
	written    bool
}

type wiaContainer struct {
	f           *os.File
	groupSize   int64
	logicalSize int64
	groups      []wiaGroup
}

// OpenWIA opens an existing WIA image.
func OpenWIA(path string) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("image: open wia %s: %w", path, err)
	}
	hdr := make([]byte, wiaHeaderLen)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: read wia header: %w", err)
	}
	if string(hdr[0:4]) != wiaMagic {
		f.Close()
		return nil, fmt.Errorf("image: %s: %w", path, ErrUnknownFormat)
	}
	groupSize := int64(binary.BigEndian.Uint32(hdr[4:8]))
	logicalSize := int64(binary.BigEndian.Uint64(hdr[8:16]))
	groupTableOff := int64(binary.BigEndian.Uint64(hdr[16:24]))
	groupCount := binary.BigEndian.Uint32(hdr[24:28])

	table := make([]byte, int64(groupCount)*wiaGroupEntryLen)
	if groupCount > 0 {
		if _, err := f.ReadAt(table, groupTableOff); err != nil {
			f.Close()
			return nil, fmt.Errorf("image: read wia group table: %w", err)
		}
	}
	groups := make([]wiaGroup, groupCount)
	for i := range groups {
		e := table[i*wiaGroupEntryLen : (i+1)*wiaGroupEntryLen]
		groups[i] = wiaGroup{
			fileOffset: int64(binary.BigEndian.Uint64(e[0:8])),
			storedSize: int64(binary.BigEndian.Uint32(e[8:12])),
			rawSize:    int64(binary.BigEndian.Uint32(e[12:16])),
			codec:      wiaCodec(e[16]),
			written:    e[16] != 0 || binary.BigEndian.Uint32(e[8:12]) != 0,
		}
	}
	return &wiaContainer{f: f, groupSize: groupSize, logicalSize: logicalSize, groups: groups}, nil
}

// CreateWIA creates a new WIA image with every group initially
// unwritten (reads as zero).
func CreateWIA(path string, logicalSize, groupSize int64) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("image: create wia %s: %w", path, err)
	}
	numGroups := (logicalSize + groupSize - 1) / groupSize
	c := &wiaContainer{f: f, groupSize: groupSize, logicalSize: logicalSize, groups: make([]wiaGroup, numGroups)}
	if err := c.writeHeaderAndTable(wiaHeaderLen + numGroups*wiaGroupEntryLen); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *wiaContainer) writeHeaderAndTable(groupTableOff int64) error {
	hdr := make([]byte, wiaHeaderLen)
	copy(hdr[0:4], wiaMagic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(c.groupSize))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(c.logicalSize))
	binary.BigEndian.PutUint64(hdr[16:24], uint64(groupTableOff))
	binary.BigEndian.PutUint32(hdr[24:28], uint32(len(c.groups)))
	if _, err := c.f.WriteAt(hdr, 0); err != nil {
		return err
	}
	table := make([]byte, len(c.groups)*wiaGroupEntryLen)
	for i, g := range c.groups {
		e := table[i*wiaGroupEntryLen : (i+1)*wiaGroupEntryLen]
		binary.BigEndian.PutUint64(e[0:8], uint64(g.fileOffset))
		binary.BigEndian.PutUint32(e[8:12], uint32(g.storedSize))
		binary.BigEndian.PutUint32(e[12:16], uint32(g.rawSize))
		e[16] = byte(g.codec)
	}
	_, err := c.f.WriteAt(table, groupTableOff)
	return err
}

func (c *wiaContainer) decodeGroup(g wiaGroup) ([]byte, error) {
	if !g.written {
		return make([]byte, c.groupSize), nil
	}
	stored := make([]byte, g.storedSize)
	if _, err := c.f.ReadAt(stored, g.fileOffset); err != nil {
		return nil, err
	}
	switch g.codec {
	case wiaCodecNone:
		return stored, nil
	case wiaCodecLZMA:
		r, err := lzma.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("image: wia group lzma: %w", err)
		}
		out := make([]byte, g.rawSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("image: wia group lzma decompress: %w", err)
		}
		return out, nil
	case wiaCodecLZO:
		out, err := lzo.Decompress1X(bytes.NewReader(stored), int(g.storedSize), int(g.rawSize))
		if err != nil {
			return nil, fmt.Errorf("image: wia group lzo decompress: %w", err)
		}
		return out, nil
	case wiaCodecBZIP2:
		out := make([]byte, g.rawSize)
		if _, err := io.ReadFull(bzip2.NewReader(bytes.NewReader(stored)), out); err != nil {
			return nil, fmt.Errorf("image: wia group bzip2 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("image: wia group: unsupported codec %d", g.codec)
	}
}

func (c *wiaContainer) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx := (off + int64(n)) / c.groupSize
		within := (off + int64(n)) % c.groupSize
		if int(idx) >= len(c.groups) {
			break
		}
		data, err := c.decodeGroup(c.groups[idx])
		if err != nil {
			return n, err
		}
		chunk := p[n:]
		room := c.groupSize - within
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		copy(chunk, data[within:within+int64(len(chunk))])
		n += len(chunk)
	}
	if n < len(p) {
		return n, fmt.Errorf("image: wia read past logical end")
	}
	return n, nil
}

// WriteAt only supports writing a full group at a time (group-aligned
// offset, group-sized buffer), the same restriction WIA's own writer
// operates under since every group is compressed as one unit; partial
// overwrites must be read-modify-write by the caller.
func (c *wiaContainer) WriteAt(p []byte, off int64) (int, error) {
	if off%c.groupSize != 0 || int64(len(p)) != c.groupSize {
		return 0, fmt.Errorf("image: wia write must be group-aligned and group-sized (group size %d)", c.groupSize)
	}
	idx := off / c.groupSize
	if int(idx) >= len(c.groups) {
		return 0, fmt.Errorf("image: wia write past logical end")
	}

	codec, stored, err := c.compressGroup(p)
	if err != nil {
		return 0, err
	}
	fi, err := c.f.Stat()
	if err != nil {
		return 0, err
	}
	fileOff := fi.Size()
	if _, err := c.f.WriteAt(stored, fileOff); err != nil {
		return 0, err
	}
	c.groups[idx] = wiaGroup{
		fileOffset: fileOff,
		storedSize: int64(len(stored)),
		rawSize:    int64(len(p)),
		codec:      codec,
		written:    true,
	}
	return len(p), nil
}

// compressGroup tries LZMA and BZIP2 and keeps whichever result is
// smallest (LZO groups are only decoded, never produced here), falling
// back to storing raw if none shrink the group (a
// common outcome for incompressible trailing padding). BZIP2 is
// attempted via internal/codec's external-process seam and simply
// skipped if the system has no "bzip2" binary, rather than failing the
// whole group.
func (c *wiaContainer) compressGroup(p []byte) (wiaCodec, []byte, error) {
	best := wiaCodecNone
	bestData := p

	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return 0, nil, err
	}
	if _, err := w.Write(p); err != nil {
		return 0, nil, err
	}
	if err := w.Close(); err != nil {
		return 0, nil, err
	}
	if buf.Len() < len(bestData) {
		best, bestData = wiaCodecLZMA, buf.Bytes()
	}

	if bz, err := codec.BZIP2Compress(p); err == nil && len(bz) < len(bestData) {
		best, bestData = wiaCodecBZIP2, bz
	}

	return best, bestData, nil
}

func (c *wiaContainer) Size() int64 { return c.logicalSize }

func (c *wiaContainer) Sync() error {
	fi, err := c.f.Stat()
	if err != nil {
		return err
	}
	if err := c.writeHeaderAndTable(fi.Size()); err != nil {
		return err
	}
	return c.f.Sync()
}

func (c *wiaContainer) Close() error {
	if err := c.Sync(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}
