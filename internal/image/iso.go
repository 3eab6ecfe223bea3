package image

import (
	"fmt"
	"os"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// isoContainer is the simplest backend: the logical disc image *is*
// the file, byte for byte. ReadAt/WriteAt pass straight through.
type isoContainer struct {
	f    *os.File
	size int64
}

// OpenISO opens path as a plain ISO container. readOnly controls
// whether the file is opened for writing as well.
func OpenISO(path string, readOnly bool) (Container, error) {
	flag := os.O_RDONLY
	if !readOnly {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("image: open iso %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("image: stat iso %s: %w", path, err)
	}
	return &isoContainer{f: f, size: fi.Size()}, nil
}

// CreateISO creates a new plain ISO container of the given logical
// size, pre-allocated as a sparse file.
func CreateISO(path string, size int64) (Container, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("image: create iso %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("image: truncate iso %s: %w", path, err)
	}
	return &isoContainer{f: f, size: size}, nil
}

func (c *isoContainer) ReadAt(p []byte, off int64) (int, error)  { return c.f.ReadAt(p, off) }
func (c *isoContainer) WriteAt(p []byte, off int64) (int, error) { return c.f.WriteAt(p, off) }
func (c *isoContainer) Size() int64                              { return c.size }
func (c *isoContainer) Sync() error                              { return c.f.Sync() }
func (c *isoContainer) Close() error                             { return c.f.Close() }

// HasMBRPartitionTable reports whether path carries a standard MBR
// partition table at its start, the signal used (alongside the
// id6-derived Attrib) to recognize a multi-boot GameCube DVD9 image:
// such discs are laid out so a PC's BIOS sees a bootable MBR while a
// GameCube sees its native disc header at offset 0. Uses go-diskfs
// purely as an MBR reader; this package never asks
// go-diskfs to interpret the GC/Wii partition scheme itself, since
// that format is proprietary and implemented in internal/disc.
func HasMBRPartitionTable(path string) (bool, error) {
	disk, err := diskfs.Open(path)
	if err != nil {
		return false, nil // not readable as any disk.Disk-compatible image: no MBR
	}
	defer disk.Close()

	pt, err := disk.GetPartitionTable()
	if err != nil {
		return false, nil
	}
	_, ok := pt.(*mbr.Table)
	return ok, nil
}
