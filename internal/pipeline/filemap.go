package pipeline

import (
	"fmt"
	"sort"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/werr"
)

// FileMapEntry is one path's placement within a partition's data
// region, the unit SKELETONIZE and CREATE reason about when deciding
// what to carry forward versus regenerate.
type FileMapEntry struct {
	Path            string
	PartitionOffset int64
	DataOff4        uint32
	Size            uint32
	System          bool // true for boot.bin/bi2.bin/apploader.img/main.dol/fst.bin/h3.bin
}

// FileMap is the full, path-sorted listing for a disc's selected
// partitions.
type FileMap struct {
	Entries []FileMapEntry
}

// Lookup returns the entry for path, if present.
func (m *FileMap) Lookup(path string) (FileMapEntry, bool) {
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return FileMapEntry{}, false
}

// BuildFileMap walks path's selected partitions via IterateFiles and
// returns every file and system file, sorted by path within each
// partition. This is the same traversal DiffDisc's collectFiles uses
// internally, exposed standalone for SKELETONIZE/CREATE and for the
// LIST/FILES CLI subcommand to render directly, without those callers
// re-deriving FST traversal themselves.
func BuildFileMap(path string, sel disc.Selector, keys *crypto.KeyRing) (*FileMap, error) {
	c, err := image.Open(path, true)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "opening image for file map")
	}
	defer c.Close()

	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "reading disc structure")
	}
	parts := d.SelectPartitions(sel)

	m := &FileMap{}
	err = d.IterateFiles(parts, func(kind disc.FileVisitKind, fpath string, part *disc.Partition, dataOff4 uint32, size uint32) {
		switch kind {
		case disc.VisitFile, disc.VisitSystemFile:
			m.Entries = append(m.Entries, FileMapEntry{
				Path:            fpath,
				PartitionOffset: part.AbsOffset,
				DataOff4:        dataOff4,
				Size:            size,
				System:          kind == disc.VisitSystemFile,
			})
		}
	}, 0)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "walking fst")
	}

	sort.Slice(m.Entries, func(i, j int) bool {
		if m.Entries[i].PartitionOffset != m.Entries[j].PartitionOffset {
			return m.Entries[i].PartitionOffset < m.Entries[j].PartitionOffset
		}
		return m.Entries[i].Path < m.Entries[j].Path
	})
	return m, nil
}

// String renders one entry for human-readable LIST/FILES output.
func (e FileMapEntry) String() string {
	kind := "file"
	if e.System {
		kind = "system"
	}
	return fmt.Sprintf("%s %10d  %s", kind, e.Size, e.Path)
}
