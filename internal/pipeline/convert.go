// Package pipeline implements the scrub/diff/verify pipeline: the
// COPY/CONVERT, DIFF, and VERIFY operations layered on top of
// internal/disc's partition engine and internal/image's superfile
// containers.
package pipeline

import (
	"fmt"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/fakesign"
	"github.com/wiimm/witcore/internal/format"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/logger"
	"github.com/wiimm/witcore/internal/werr"
)

// defaultBlockSize is the per-block granularity CISO/GCZ destinations
// are created with when the caller doesn't need a different one; it
// matches format.SizeCluster, the unit the rest of this module already
// reasons about sector usage in.
const defaultBlockSize = format.SizeCluster

var log = logger.Logger()

// Progress is called after each unit of work a long-running pipeline
// operation completes; done/total are in caller-defined units (disc
// sectors for COPY/CONVERT, clusters for VERIFY). A nil Progress is a
// valid no-op subscriber.
type Progress func(done, total int)

// ConvertOptions configures a COPY/CONVERT run.
type ConvertOptions struct {
	// DestFormat selects the destination container backend. FormatISO
	// is a bit-identical byte copy; the others compress or sparsify the
	// destination per their own format, using Disc.BuildUsageMap to
	// skip sectors the source disc itself never references.
	DestFormat image.Format

	// FakeSign re-signs every selected partition's ticket/TMD with the
	// leading zero byte signature bypass after the copy, rather than
	// preserving the source signature bytes verbatim.
	FakeSign bool

	// Selector picks the partitions FakeSign re-signs; the zero value
	// selects every partition. The sector copy itself covers every
	// sector the usage map marks as used, whatever Selector says.
	Selector disc.Selector

	// Keys unwraps the title keys BuildUsageMap needs to read each
	// partition's FST. A partition that cannot be opened with them
	// contributes only its control-area envelope to the usage map, so
	// its H3 table and data clusters are not copied.
	Keys *crypto.KeyRing

	OnProgress Progress
}

// ConvertImageInterface is the seam ConvertImage is defined in terms
// of, so a caller (cmd/wit's copy/convert subcommands) can swap in a
// fake for testing.
type ConvertImageInterface interface {
	ConvertImage(srcPath, dstPath string, opts ConvertOptions) (*ConvertResult, error)
}

// Converter is the default ConvertImageInterface implementation.
type Converter struct{}

func NewConverter() *Converter { return &Converter{} }

// ConvertResult summarizes a completed COPY/CONVERT run.
type ConvertResult struct {
	SourceFormat     image.Format
	DestFormat       image.Format
	BytesWritten     int64
	SectorsSkipped   int64
	PartitionsSigned int
}

// ConvertImage streams srcPath's disc image into dstPath, opened as
// opts.DestFormat, skipping sectors the usage map reports as unused
// and optionally fake-signing the selected partitions afterwards:
// detect the source format, copy every used sector (also when source
// and destination formats are the same), and report what was done,
// streaming between this project's own internal/image backends since a
// GC/Wii disc image is a format this module already understands
// natively.
func (c *Converter) ConvertImage(srcPath, dstPath string, opts ConvertOptions) (*ConvertResult, error) {
	srcFormat, err := image.Detect(srcPath)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "detecting source image format")
	}

	src, err := image.Open(srcPath, true)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "opening source image")
	}
	defer src.Close()

	d, err := disc.OpenDisc(src, opts.Keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "reading source disc structure")
	}

	usage, err := d.BuildUsageMap()
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "building usage map")
	}

	dst, err := openDestination(dstPath, opts.DestFormat, src.Size())
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "opening destination image")
	}
	defer dst.Close()

	result := &ConvertResult{SourceFormat: srcFormat, DestFormat: opts.DestFormat}

	const sectorSize = format.SizeCluster
	total := len(usage)
	buf := make([]byte, sectorSize)
	for i, used := range usage {
		if !used {
			result.SectorsSkipped++
			if opts.OnProgress != nil {
				opts.OnProgress(i+1, total)
			}
			continue
		}
		off := int64(i) * sectorSize
		n, err := src.ReadAt(buf, off)
		if err != nil && n == 0 {
			return result, werr.Wrap(werr.KindIO, err, fmt.Sprintf("reading sector %d", i))
		}
		if _, err := dst.WriteAt(buf[:n], off); err != nil {
			return result, werr.Wrap(werr.KindIO, err, fmt.Sprintf("writing sector %d", i))
		}
		result.BytesWritten += int64(n)
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total)
		}
	}

	selected := d.SelectPartitions(opts.Selector)
	if opts.FakeSign {
		for _, p := range selected {
			if p.Ticket == nil || p.TMD == nil {
				continue
			}
			if err := fakesign.MaybeFakeSign(true, p.Ticket, p.TMD); err != nil {
				log.Warnw("pipeline: fake-sign failed", "offset", p.AbsOffset, "error", err)
				continue
			}
			if err := writeSignedPair(dst, p); err != nil {
				return result, werr.Wrap(werr.KindCrypto, err, "writing re-signed ticket/tmd")
			}
			result.PartitionsSigned++
		}
	}

	if err := dst.Sync(); err != nil {
		return result, werr.Wrap(werr.KindIO, err, "flushing destination image")
	}
	return result, nil
}

// writeSignedPair re-serializes p's (now fake-signed in memory)
// ticket and TMD back over the destination container at their
// original absolute offsets.
func writeSignedPair(dst image.Container, p *disc.Partition) error {
	tikRaw := format.EncodeTicket(p.Ticket)
	if _, err := dst.WriteAt(tikRaw, p.AbsOffset); err != nil {
		return err
	}
	tmdRaw := format.EncodeTMD(p.TMD)
	if _, err := dst.WriteAt(tmdRaw, p.AbsOffset+p.Header.TMDOffset()); err != nil {
		return err
	}
	return nil
}

func openDestination(path string, f image.Format, hint int64) (image.Container, error) {
	switch f {
	case image.FormatCISO:
		return image.CreateCISO(path, hint, defaultBlockSize)
	case image.FormatGCZ:
		return image.CreateGCZ(path, hint, defaultBlockSize)
	case image.FormatWDF2:
		return image.CreateWDF(path, hint, 2)
	case image.FormatWDF1:
		return image.CreateWDF(path, hint, 1)
	default:
		return image.CreateISO(path, hint)
	}
}
