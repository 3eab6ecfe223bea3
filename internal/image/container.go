// Package image implements the "superfile" container abstraction:
// uniform random-access I/O over the various on-disk representations a
// GC/Wii disc image can take (plain ISO, WDF, WIA, CISO, GCZ, a disc
// embedded in a WBFS partition, or an extracted FST-tree directory),
// addressed by the disc's own logical byte offsets regardless of how
// the backing file actually stores them.
package image

import (
	"fmt"
	"io"
)

// Container is the uniform interface every backend implements. Offsets
// and sizes are always in the disc's logical address space — a
// ReadAt(buf, 0) always returns the disc header, whichever physical
// format is backing it.
type Container interface {
	io.ReaderAt
	io.WriterAt
	// Size returns the logical disc size in bytes.
	Size() int64
	// Sync flushes any buffered metadata (block tables, hash caches)
	// to the backing store.
	Sync() error
	io.Closer
}

// Format identifies a container's on-disk representation.
type Format int

const (
	FormatUnknown Format = iota
	FormatISO
	FormatWDF1
	FormatWDF2
	FormatWIA
	FormatCISO
	FormatGCZ
	FormatWBFS
	FormatFSTDir
)

func (f Format) String() string {
	switch f {
	case FormatISO:
		return "ISO"
	case FormatWDF1:
		return "WDF1"
	case FormatWDF2:
		return "WDF2"
	case FormatWIA:
		return "WIA"
	case FormatCISO:
		return "CISO"
	case FormatGCZ:
		return "GCZ"
	case FormatWBFS:
		return "WBFS"
	case FormatFSTDir:
		return "FST-DIR"
	default:
		return "unknown"
	}
}

// ErrUnknownFormat is returned by Detect when no backend recognizes a
// file's magic bytes.
var ErrUnknownFormat = fmt.Errorf("image: unrecognized container format")
