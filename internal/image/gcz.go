package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
)

// GCZ is Dolphin's compressed disc format: a fixed header followed by
// a block-pointer table (one u64 per block, high bit clear = the
// block is stored zlib-compressed at that file offset; high bit set =
// the block is stored raw, uncompressed). This package reads and writes
// no per-block checksum table. Compressed blocks are decoded with
// klauspost/compress's zlib reader; nothing here compresses a block:
// CreateGCZ stores every block raw. See DESIGN.md for the format
// reference this is grounded on.
const (
	gczMagic         uint32 = 0xB10BC001
	gczHeaderLen            = 32
	gczRawBlockFlag  uint64 = 1 << 63
)

type gczContainer struct {
	f           *os.File
	blockSize   int64
	numBlocks   int64
	logicalSize int64
	pointers    []uint64 // length numBlocks, high bit = raw
}

// OpenGCZ opens an existing GCZ image.
func OpenGCZ(path string) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("image: open gcz %s: %w", path, err)
	}
	hdr := make([]byte, gczHeaderLen)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: read gcz header: %w", err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != gczMagic {
		f.Close()
		return nil, fmt.Errorf("image: %s: %w", path, ErrUnknownFormat)
	}
	dataSize := binary.LittleEndian.Uint64(hdr[16:24])
	numBlocks := int64(binary.LittleEndian.Uint32(hdr[24:28]))
	blockSize := int64(binary.LittleEndian.Uint32(hdr[28:32]))

	ptrBytes := make([]byte, numBlocks*8)
	if _, err := f.ReadAt(ptrBytes, gczHeaderLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: read gcz block pointer table: %w", err)
	}
	pointers := make([]uint64, numBlocks)
	for i := range pointers {
		pointers[i] = binary.LittleEndian.Uint64(ptrBytes[i*8 : i*8+8])
	}
	return &gczContainer{
		f:           f,
		blockSize:   blockSize,
		numBlocks:   numBlocks,
		logicalSize: int64(dataSize),
		pointers:    pointers,
	}, nil
}

// CreateGCZ creates a new GCZ image with every block uncompressed and
// zero-filled, ready for sequential WriteAt calls.
func CreateGCZ(path string, logicalSize, blockSize int64) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("image: create gcz %s: %w", path, err)
	}
	numBlocks := (logicalSize + blockSize - 1) / blockSize

	hdr := make([]byte, gczHeaderLen)
	binary.LittleEndian.PutUint32(hdr[0:4], gczMagic)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(logicalSize)) // compressed_data_size placeholder
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(logicalSize))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(numBlocks))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(blockSize))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		f.Close()
		return nil, err
	}

	c := &gczContainer{f: f, blockSize: blockSize, numBlocks: numBlocks, logicalSize: logicalSize}
	c.pointers = make([]uint64, numBlocks)
	dataStart := gczHeaderLen + numBlocks*8
	for i := range c.pointers {
		off := dataStart + int64(i)*blockSize
		c.pointers[i] = gczRawBlockFlag | uint64(off)
		if _, err := f.WriteAt(make([]byte, blockSize), off); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := c.flushPointerTable(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *gczContainer) flushPointerTable() error {
	buf := make([]byte, len(c.pointers)*8)
	for i, p := range c.pointers {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], p)
	}
	_, err := c.f.WriteAt(buf, gczHeaderLen)
	return err
}

func (c *gczContainer) readBlock(idx int64) ([]byte, error) {
	ptr := c.pointers[idx]
	off := int64(ptr &^ gczRawBlockFlag)
	raw := ptr&gczRawBlockFlag != 0

	buf := make([]byte, c.blockSize)
	if raw {
		if _, err := c.f.ReadAt(buf, off); err != nil {
			return nil, err
		}
		return buf, nil
	}
	// Compressed blocks don't know their own compressed length up
	// front in this simplified layout, so read until the next block's
	// start (or EOF for the last block).
	var end int64
	if idx+1 < c.numBlocks {
		end = int64(c.pointers[idx+1] &^ gczRawBlockFlag)
	} else {
		fi, err := c.f.Stat()
		if err != nil {
			return nil, err
		}
		end = fi.Size()
	}
	compressed := make([]byte, end-off)
	if _, err := c.f.ReadAt(compressed, off); err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("image: gcz block %d: %w", idx, err)
	}
	defer zr.Close()
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, fmt.Errorf("image: gcz block %d decompress: %w", idx, err)
	}
	return buf, nil
}

func (c *gczContainer) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx := (off + int64(n)) / c.blockSize
		within := (off + int64(n)) % c.blockSize
		if idx >= c.numBlocks {
			break
		}
		block, err := c.readBlock(idx)
		if err != nil {
			return n, err
		}
		chunk := p[n:]
		room := c.blockSize - within
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		copy(chunk, block[within:within+int64(len(chunk))])
		n += len(chunk)
	}
	if n < len(p) {
		return n, fmt.Errorf("image: gcz read past logical end")
	}
	return n, nil
}

// WriteAt only supports rewriting an existing raw (uncompressed)
// block in place; a compressed block cannot be written. Sync only
// flushes the file: no pass compresses written blocks.
func (c *gczContainer) WriteAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx := (off + int64(n)) / c.blockSize
		within := (off + int64(n)) % c.blockSize
		if idx >= c.numBlocks {
			return n, fmt.Errorf("image: gcz write past logical end")
		}
		if c.pointers[idx]&gczRawBlockFlag == 0 {
			return n, fmt.Errorf("image: gcz block %d is compressed; cannot write in place", idx)
		}
		blockOff := int64(c.pointers[idx] &^ gczRawBlockFlag)
		chunk := p[n:]
		room := c.blockSize - within
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		if _, err := c.f.WriteAt(chunk, blockOff+within); err != nil {
			return n, err
		}
		n += len(chunk)
	}
	return n, nil
}

func (c *gczContainer) Size() int64 { return c.logicalSize }
func (c *gczContainer) Sync() error { return c.f.Sync() }

func (c *gczContainer) Close() error { return c.f.Close() }
