package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wiimm/witcore/internal/crypto"
	"github.com/wiimm/witcore/internal/disc"
	"github.com/wiimm/witcore/internal/image"
	"github.com/wiimm/witcore/internal/werr"
)

// SkeletonMagic identifies a skeleton manifest file, the same
// "recognizable tag on a serialized structure" shape internal/disc's
// wpat_magic patch-header constant uses, adapted here for a file-
// placement manifest rather than a patch list.
const SkeletonMagic = "WIT-SKELETON-1"

// SkeletonEntry records one FST path's placement in the source image,
// without carrying its (potentially large, unchanged) content.
type SkeletonEntry struct {
	Path            string `yaml:"path"`
	PartitionOffset int64  `yaml:"partition_offset"`
	DataOff4        uint32 `yaml:"data_off4"`
	Size            uint32 `yaml:"size"`
	System          bool   `yaml:"system"`
}

// SkeletonManifest is SKELETONIZE's output: system files are extracted
// to disk alongside it; regular files are recorded here by placement
// only, since CREATE pulls their bytes back from the source image it
// is given (CreateOptions.SourceImage). Source records the path
// Skeletonize read; CreateDisc does not consult it.
type SkeletonManifest struct {
	Magic   string          `yaml:"magic"`
	Source  string          `yaml:"source"`
	Entries []SkeletonEntry `yaml:"entries"`
}

// Skeletonize extracts srcPath's system files into destDir (preserving
// FST structure, the same layout EXTRACT's --system writes) and writes
// a manifest.yaml recording every file's placement: a disc's system
// files minus its bulky, unmodified regular-file payload.
func Skeletonize(srcPath, destDir string, keys *crypto.KeyRing) (*SkeletonManifest, error) {
	m, err := BuildFileMap(srcPath, disc.Selector{All: true}, keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "building file map")
	}

	c, err := image.Open(srcPath, true)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "opening image")
	}
	defer c.Close()
	d, err := disc.OpenDisc(c, keys)
	if err != nil {
		return nil, werr.Wrap(werr.KindFormat, err, "reading disc structure")
	}
	parts := d.SelectPartitions(disc.Selector{All: true})

	manifest := &SkeletonManifest{Magic: SkeletonMagic, Source: srcPath}
	for _, e := range m.Entries {
		manifest.Entries = append(manifest.Entries, SkeletonEntry{
			Path: e.Path, PartitionOffset: e.PartitionOffset, DataOff4: e.DataOff4, Size: e.Size, System: e.System,
		})
		if !e.System {
			continue
		}
		part := partitionAt(parts, e.PartitionOffset)
		if part == nil {
			return nil, werr.Newf(werr.KindFatal, "no partition at offset %#x for %s", e.PartitionOffset, e.Path)
		}
		data, err := part.ReadPart(e.DataOff4, int(e.Size), true)
		if err != nil {
			return nil, werr.Wrap(werr.KindIO, err, fmt.Sprintf("reading %s", e.Path))
		}
		dest := filepath.Join(destDir, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, werr.Wrap(werr.KindIO, err, fmt.Sprintf("creating directory for %s", e.Path))
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return nil, werr.Wrap(werr.KindIO, err, fmt.Sprintf("writing %s", e.Path))
		}
	}

	raw, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, werr.Wrap(werr.KindFatal, err, "encoding manifest")
	}
	if err := os.WriteFile(filepath.Join(destDir, "manifest.yaml"), raw, 0644); err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "writing manifest.yaml")
	}
	return manifest, nil
}

// LoadSkeletonManifest reads and validates a manifest.yaml written by
// Skeletonize.
func LoadSkeletonManifest(path string) (*SkeletonManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, werr.Wrap(werr.KindIO, err, "reading manifest")
	}
	var m SkeletonManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, werr.Wrap(werr.KindSyntax, err, "parsing manifest")
	}
	if m.Magic != SkeletonMagic {
		return nil, werr.Newf(werr.KindSyntax, "not a skeleton manifest (magic %q)", m.Magic)
	}
	return &m, nil
}

// CreateOptions configures the CREATE operation: reassemble a disc
// image from a skeleton manifest, pulling each entry's bytes
// back from the original source image while letting any file present
// under OverrideDir replace that entry's content instead.
type CreateOptions struct {
	ManifestPath string
	SourceImage  string
	OverrideDir  string
	FakeSign     bool
	Keys         *crypto.KeyRing
}

// CreateDisc reassembles destPath from opts, reducing to EditDisc with
// one FilePatch per entry overridden on disk. CREATE and EDIT share
// the same patch/re-hash/re-encrypt engine; CREATE's distinguishing
// job is resolving which entries to patch from a skeleton manifest and
// an override directory rather than explicit --set-file flags. An
// override file must not exceed its entry's original size: this
// module's partition data model sizes FST extents at disc-parse time,
// and partition regions must lie entirely within the control-area
// envelope, so resizing a file is out of scope for CREATE here, the
// same boundary EDIT/DOLPATCH already draw.
func CreateDisc(destPath string, opts CreateOptions) (*EditResult, error) {
	manifest, err := LoadSkeletonManifest(opts.ManifestPath)
	if err != nil {
		return nil, err
	}

	editOpts := EditOptions{FakeSign: opts.FakeSign, Keys: opts.Keys}
	for _, e := range manifest.Entries {
		if opts.OverrideDir == "" {
			continue
		}
		hostPath := filepath.Join(opts.OverrideDir, filepath.FromSlash(e.Path))
		data, err := os.ReadFile(hostPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, werr.Wrap(werr.KindIO, err, fmt.Sprintf("reading %s", hostPath))
		}
		editOpts.FilePatches = append(editOpts.FilePatches, FilePatch{Path: e.Path, Offset: 0, Data: data})
	}

	return EditDisc(opts.SourceImage, destPath, editOpts)
}
