package image

import (
	"encoding/binary"
	"fmt"
	"os"
)

// CISO ("Compact ISO") layout: a fixed 0x8000-byte header (magic,
// block size, a 1-byte-per-block presence map), followed by the
// present blocks packed back to back in ascending block-index order.
// Absent blocks read back as zero. It follows the format's public,
// widely documented layout (see DESIGN.md).
const (
	cisoMagic     = "CISO"
	cisoHeaderLen = 0x8000
	cisoMapLen    = cisoHeaderLen - 8 // 4 magic + 4 block size
)

type cisoContainer struct {
	f         *os.File
	blockSize int64
	// blockFileOffset[i] is the byte offset of block i's data within
	// the backing file, or -1 if the block was never written (reads
	// as zero).
	blockFileOffset []int64
	logicalSize     int64
}

// OpenCISO opens an existing CISO image for reading and writing. A
// write to an absent block appends a new block at the end of the file
// and sets that block's presence-map entry.
func OpenCISO(path string) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("image: open ciso %s: %w", path, err)
	}
	header := make([]byte, cisoHeaderLen)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: read ciso header: %w", err)
	}
	if string(header[0:4]) != cisoMagic {
		f.Close()
		return nil, fmt.Errorf("image: %s: %w", path, ErrUnknownFormat)
	}
	blockSize := int64(binary.LittleEndian.Uint32(header[4:8]))
	if blockSize <= 0 {
		f.Close()
		return nil, fmt.Errorf("image: ciso block size %d invalid", blockSize)
	}

	c := &cisoContainer{f: f, blockSize: blockSize}
	dataOff := int64(cisoHeaderLen)
	for i := 0; i < cisoMapLen; i++ {
		present := header[8+i] != 0
		if present {
			c.blockFileOffset = append(c.blockFileOffset, dataOff)
			dataOff += blockSize
		} else {
			c.blockFileOffset = append(c.blockFileOffset, -1)
		}
	}
	c.logicalSize = int64(len(c.blockFileOffset)) * blockSize
	return c, nil
}

// CreateCISO creates a new CISO image with every block initially
// absent (an all-zero logical disc of the given size).
func CreateCISO(path string, logicalSize, blockSize int64) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("image: create ciso %s: %w", path, err)
	}
	numBlocks := (logicalSize + blockSize - 1) / blockSize
	if numBlocks > cisoMapLen {
		f.Close()
		return nil, fmt.Errorf("image: ciso logical size %d needs %d blocks, map only holds %d", logicalSize, numBlocks, cisoMapLen)
	}
	header := make([]byte, cisoHeaderLen)
	copy(header[0:4], cisoMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(blockSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		f.Close()
		return nil, err
	}
	c := &cisoContainer{f: f, blockSize: blockSize, logicalSize: numBlocks * blockSize}
	c.blockFileOffset = make([]int64, numBlocks)
	for i := range c.blockFileOffset {
		c.blockFileOffset[i] = -1
	}
	return c, nil
}

func (c *cisoContainer) blockIndex(off int64) (idx int, within int64) {
	return int(off / c.blockSize), off % c.blockSize
}

func (c *cisoContainer) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx, within := c.blockIndex(off + int64(n))
		if idx >= len(c.blockFileOffset) {
			break
		}
		chunk := p[n:]
		room := c.blockSize - within
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		fileOff := c.blockFileOffset[idx]
		if fileOff < 0 {
			for i := range chunk {
				chunk[i] = 0
			}
		} else if _, err := c.f.ReadAt(chunk, fileOff+within); err != nil {
			return n, err
		}
		n += len(chunk)
	}
	if n < len(p) {
		return n, fmt.Errorf("image: ciso read past logical end")
	}
	return n, nil
}

func (c *cisoContainer) WriteAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx, within := c.blockIndex(off + int64(n))
		if idx >= len(c.blockFileOffset) {
			return n, fmt.Errorf("image: ciso write past logical end")
		}
		chunk := p[n:]
		room := c.blockSize - within
		if int64(len(chunk)) > room {
			chunk = chunk[:room]
		}
		if c.blockFileOffset[idx] < 0 {
			if err := c.allocateBlock(idx); err != nil {
				return n, err
			}
		}
		if _, err := c.f.WriteAt(chunk, c.blockFileOffset[idx]+within); err != nil {
			return n, err
		}
		n += len(chunk)
	}
	return n, nil
}

// allocateBlock appends a fresh zero-filled block to the file and
// records its offset, flipping the header's presence map entry.
func (c *cisoContainer) allocateBlock(idx int) error {
	fi, err := c.f.Stat()
	if err != nil {
		return err
	}
	newOff := fi.Size()
	if _, err := c.f.WriteAt(make([]byte, c.blockSize), newOff); err != nil {
		return err
	}
	c.blockFileOffset[idx] = newOff
	_, err = c.f.WriteAt([]byte{1}, int64(8+idx))
	return err
}

func (c *cisoContainer) Size() int64  { return c.logicalSize }
func (c *cisoContainer) Sync() error  { return c.f.Sync() }
func (c *cisoContainer) Close() error { return c.f.Close() }
