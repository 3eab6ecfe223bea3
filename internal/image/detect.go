package image

import (
	"fmt"
	"os"
)

// Detect inspects path's leading bytes and reports which Format it
// recognizes, without fully opening it. FST-tree containers (a plain
// directory, not a regular file) are detected separately by the
// caller via os.Stat, since Detect only reads file content.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	magic := make([]byte, 8)
	n, _ := f.ReadAt(magic, 0)
	magic = magic[:n]

	switch {
	case len(magic) >= 4 && string(magic[0:4]) == cisoMagic:
		return FormatCISO, nil
	case len(magic) >= 4 && string(magic[0:4]) == wiaMagic:
		return FormatWIA, nil
	case len(magic) >= 8 && string(magic[0:8]) == wdfMagic:
		// WDF version distinguishes WDF1 from WDF2; read it directly
		// rather than re-deriving it from the magic bytes alone.
		var verBuf [4]byte
		if _, err := f.ReadAt(verBuf[:], 8); err == nil {
			if verBuf[3] >= 2 {
				return FormatWDF2, nil
			}
		}
		return FormatWDF1, nil
	case len(magic) >= 4 && string(magic[0:4]) == wbfsMagic:
		return FormatWBFS, nil
	case len(magic) >= 4 && magic[0] == 0x01 && magic[1] == 0xC0 && magic[2] == 0x0B && magic[3] == 0xB1:
		// gczMagic 0xB10BC001, little-endian on disc.
		return FormatGCZ, nil
	default:
		return FormatISO, nil // plain ISO has no magic of its own to check here
	}
}

// Open detects path's format and opens it through the matching
// backend. readOnly is only honored by backends that distinguish
// read-only opens from read/write ones (currently just plain ISO).
func Open(path string, readOnly bool) (Container, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("image: %s is a directory; use an FST-tree container via internal/disc", path)
	}

	format, err := Detect(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCISO:
		return OpenCISO(path)
	case FormatWIA:
		return OpenWIA(path)
	case FormatWDF1, FormatWDF2:
		return OpenWDF(path)
	case FormatWBFS:
		return OpenWBFSDisc(path)
	case FormatGCZ:
		return OpenGCZ(path)
	default:
		return OpenISO(path, readOnly)
	}
}
