package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSkeletonManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifest := &SkeletonManifest{
		Magic:  SkeletonMagic,
		Source: "game.iso",
		Entries: []SkeletonEntry{
			{Path: "sys/boot.bin", PartitionOffset: 0, DataOff4: 0, Size: 0x440, System: true},
			{Path: "files/data.bin", PartitionOffset: 0, DataOff4: 0x1000, Size: 2048, System: false},
		},
	}

	path := filepath.Join(dir, "manifest.yaml")
	raw, err := yaml.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadSkeletonManifest(path)
	if err != nil {
		t.Fatalf("LoadSkeletonManifest failed: %v", err)
	}
	if got.Magic != SkeletonMagic || got.Source != "game.iso" {
		t.Errorf("unexpected manifest header: %+v", got)
	}
	if len(got.Entries) != 2 || got.Entries[0].Path != "sys/boot.bin" || !got.Entries[0].System {
		t.Errorf("unexpected entries: %+v", got.Entries)
	}
	if got.Entries[1].Size != 2048 || got.Entries[1].System {
		t.Errorf("unexpected second entry: %+v", got.Entries[1])
	}
}

func TestLoadSkeletonManifest_WrongMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	if err := os.WriteFile(path, []byte("magic: NOT-A-SKELETON\nsource: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSkeletonManifest(path); err == nil {
		t.Error("expected a magic-mismatch error")
	}
}

func TestLoadSkeletonManifest_MissingFile(t *testing.T) {
	if _, err := LoadSkeletonManifest("/nonexistent/manifest.yaml"); err == nil {
		t.Error("expected an error for a missing manifest file")
	}
}

func TestCreateDisc_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateDisc(filepath.Join(dir, "dst.iso"), CreateOptions{
		ManifestPath: filepath.Join(dir, "nonexistent.yaml"),
		SourceImage:  filepath.Join(dir, "src.iso"),
	})
	if err == nil {
		t.Error("expected an error for a missing manifest")
	}
}

func TestCreateDisc_SkipsAbsentOverrideFiles(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.yaml")
	manifest := &SkeletonManifest{
		Magic:  SkeletonMagic,
		Source: "game.iso",
		Entries: []SkeletonEntry{
			{Path: "files/unmodified.bin", PartitionOffset: 0, DataOff4: 0, Size: 64, System: false},
		},
	}
	raw, err := yaml.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(manifestPath, raw, 0644); err != nil {
		t.Fatal(err)
	}

	// With no override file present under OverrideDir, CreateDisc should
	// fall through to EditDisc with zero FilePatches and fail only once
	// it tries to open the (nonexistent) source image — never on a
	// missing-override-file error, since the entry isn't overridden.
	_, err = CreateDisc(filepath.Join(dir, "dst.iso"), CreateOptions{
		ManifestPath: manifestPath,
		SourceImage:  filepath.Join(dir, "nonexistent-src.iso"),
		OverrideDir:  filepath.Join(dir, "overrides"),
	})
	if err == nil {
		t.Fatal("expected an error since the source image doesn't exist")
	}
	if got := err.Error(); !strings.Contains(got, "opening source image") {
		t.Errorf("expected a source-image error, got: %v", got)
	}
}
