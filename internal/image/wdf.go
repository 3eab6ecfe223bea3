package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pierrec/lz4/v4"
)

// WDF ("Wiimms Disc Format") stores only the logical-disc regions
// that were ever written, as a list of (logicalOffset, fileOffset,
// size, compressed) chunks, letting large stretches of an image that
// are provably all-zero (e.g. an unused partition gap) take zero
// space on the host filesystem. WDF1 chunks are always stored raw;
// WDF2 additionally allows any chunk to be lz4-compressed (see
// DESIGN.md for the format reference this is built against);
// compression uses pierrec/lz4/v4, already part of the dependency set.
const (
	wdfMagic        = "WII\x01DISC"
	wdfHeaderLen     = 8 + 4 + 8 + 8 + 4 // magic, version, logical size, chunk-table offset, chunk count
	wdfChunkEntryLen = 8 + 8 + 8 + 1     // disc offset, file offset, raw size, compressed flag
)

type wdfChunk struct {
	discOffset int64
	fileOffset int64
	storedSize int64
	rawSize    int64
	compressed bool
}

type wdfContainer struct {
	f           *os.File
	version     uint32 // 1 or 2
	logicalSize int64
	chunks      []wdfChunk // sorted by discOffset, non-overlapping
}

// OpenWDF opens an existing WDF1/WDF2 image.
func OpenWDF(path string) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("image: open wdf %s: %w", path, err)
	}
	hdr := make([]byte, wdfHeaderLen)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: read wdf header: %w", err)
	}
	if string(hdr[0:8]) != wdfMagic {
		f.Close()
		return nil, fmt.Errorf("image: %s: %w", path, ErrUnknownFormat)
	}
	version := binary.BigEndian.Uint32(hdr[8:12])
	logicalSize := int64(binary.BigEndian.Uint64(hdr[12:20]))
	chunkTableOff := int64(binary.BigEndian.Uint64(hdr[20:28]))
	chunkCount := binary.BigEndian.Uint32(hdr[28:32])

	table := make([]byte, int64(chunkCount)*wdfChunkEntryLen)
	if chunkCount > 0 {
		if _, err := f.ReadAt(table, chunkTableOff); err != nil {
			f.Close()
			return nil, fmt.Errorf("image: read wdf chunk table: %w", err)
		}
	}
	chunks := make([]wdfChunk, chunkCount)
	for i := range chunks {
		e := table[i*wdfChunkEntryLen : (i+1)*wdfChunkEntryLen]
		chunks[i] = wdfChunk{
			discOffset: int64(binary.BigEndian.Uint64(e[0:8])),
			fileOffset: int64(binary.BigEndian.Uint64(e[8:16])),
			rawSize:    int64(binary.BigEndian.Uint64(e[16:24])),
			compressed: e[24] != 0,
		}
	}
	// The table records each chunk's raw size only: an uncompressed
	// chunk stores exactly that many bytes, and a compressed one is read
	// up to the next chunk stored after it in the file (or the table).
	for i := range chunks {
		chunks[i].storedSize = chunks[i].rawSize
		if chunks[i].compressed {
			end := chunkTableOff
			for _, o := range chunks {
				if o.fileOffset > chunks[i].fileOffset && o.fileOffset < end {
					end = o.fileOffset
				}
			}
			chunks[i].storedSize = end - chunks[i].fileOffset
		}
	}
	return &wdfContainer{f: f, version: version, logicalSize: logicalSize, chunks: chunks}, nil
}

// CreateWDF creates a new, empty WDF image (no chunks: every offset
// reads back as zero until written).
func CreateWDF(path string, logicalSize int64, version uint32) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("image: create wdf %s: %w", path, err)
	}
	c := &wdfContainer{f: f, version: version, logicalSize: logicalSize}
	if err := c.writeHeaderAndTable(wdfHeaderLen); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *wdfContainer) writeHeaderAndTable(chunkTableOff int64) error {
	hdr := make([]byte, wdfHeaderLen)
	copy(hdr[0:8], wdfMagic)
	binary.BigEndian.PutUint32(hdr[8:12], c.version)
	binary.BigEndian.PutUint64(hdr[12:20], uint64(c.logicalSize))
	binary.BigEndian.PutUint64(hdr[20:28], uint64(chunkTableOff))
	binary.BigEndian.PutUint32(hdr[28:32], uint32(len(c.chunks)))
	if _, err := c.f.WriteAt(hdr, 0); err != nil {
		return err
	}
	table := make([]byte, len(c.chunks)*wdfChunkEntryLen)
	for i, ch := range c.chunks {
		e := table[i*wdfChunkEntryLen : (i+1)*wdfChunkEntryLen]
		binary.BigEndian.PutUint64(e[0:8], uint64(ch.discOffset))
		binary.BigEndian.PutUint64(e[8:16], uint64(ch.fileOffset))
		binary.BigEndian.PutUint64(e[16:24], uint64(ch.rawSize))
		if ch.compressed {
			e[24] = 1
		}
	}
	_, err := c.f.WriteAt(table, chunkTableOff)
	return err
}

// chunkContaining returns the index of the chunk covering logical
// offset off, or -1 if none does.
func (c *wdfContainer) chunkContaining(off int64) int {
	i := sort.Search(len(c.chunks), func(i int) bool { return c.chunks[i].discOffset+c.chunks[i].rawSize > off })
	if i < len(c.chunks) && c.chunks[i].discOffset <= off {
		return i
	}
	return -1
}

func (c *wdfContainer) readChunkData(ch wdfChunk) ([]byte, error) {
	raw := make([]byte, ch.storedSize)
	if _, err := c.f.ReadAt(raw, ch.fileOffset); err != nil {
		return nil, err
	}
	if !ch.compressed {
		return raw, nil
	}
	out := make([]byte, ch.rawSize)
	zr := lz4.NewReader(bytes.NewReader(raw))
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("image: wdf chunk at %d: lz4 decompress: %w", ch.discOffset, err)
	}
	return out, nil
}

func (c *wdfContainer) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		cur := off + int64(n)
		idx := c.chunkContaining(cur)
		if idx < 0 {
			// No chunk covers this byte: zero-fill up to the next
			// chunk's start, or to the end of the request.
			gap := len(p) - n
			if next := c.nextChunkStart(cur); next >= 0 {
				if g := int(next - cur); g < gap {
					gap = g
				}
			}
			for i := 0; i < gap; i++ {
				p[n+i] = 0
			}
			n += gap
			continue
		}
		ch := c.chunks[idx]
		data, err := c.readChunkData(ch)
		if err != nil {
			return n, err
		}
		within := cur - ch.discOffset
		avail := int64(len(p)-n)
		if room := ch.rawSize - within; room < avail {
			avail = room
		}
		copy(p[n:n+int(avail)], data[within:within+avail])
		n += int(avail)
	}
	return n, nil
}

func (c *wdfContainer) nextChunkStart(after int64) int64 {
	for _, ch := range c.chunks {
		if ch.discOffset > after {
			return ch.discOffset
		}
	}
	return -1
}

// WriteAt always appends a brand-new chunk at the end of the file
// (WDF never rewrites existing chunk data in place); callers that
// overwrite a previously-written region simply shadow it with a
// later, higher-priority chunk covering the same range. compressed
// controls whether this call's payload is lz4-compressed; the
// version-2-only feature is a no-op space choice, not a format
// requirement, so WDF1 callers always pass compressed=false.
func (c *wdfContainer) writeChunk(p []byte, discOffset int64, compressed bool) error {
	fi, err := c.f.Stat()
	if err != nil {
		return err
	}
	payload := p
	if compressed {
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(p); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		payload = buf.Bytes()
	}
	fileOff := fi.Size()
	if _, err := c.f.WriteAt(payload, fileOff); err != nil {
		return err
	}
	c.chunks = append(c.chunks, wdfChunk{
		discOffset: discOffset,
		fileOffset: fileOff,
		storedSize: int64(len(payload)),
		rawSize:    int64(len(p)),
		compressed: compressed,
	})
	sort.Slice(c.chunks, func(i, j int) bool { return c.chunks[i].discOffset < c.chunks[j].discOffset })
	return nil
}

func (c *wdfContainer) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > c.logicalSize {
		return 0, fmt.Errorf("image: wdf write past logical end")
	}
	if err := c.writeChunk(p, off, c.version >= 2); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wdfContainer) Size() int64 { return c.logicalSize }

func (c *wdfContainer) Sync() error {
	fi, err := c.f.Stat()
	if err != nil {
		return err
	}
	if err := c.writeHeaderAndTable(fi.Size()); err != nil {
		return err
	}
	return c.f.Sync()
}

func (c *wdfContainer) Close() error {
	if err := c.Sync(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}
