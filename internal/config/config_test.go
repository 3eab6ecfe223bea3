package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wiimm/witcore/internal/crypto"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		opt  string
		want Defaults
	}{
		{
			name: "empty",
			opt:  "",
			want: Defaults{Color: ColorAuto, LineWidth: defaultLineWidth},
		},
		{
			name: "color and width",
			opt:  "color=on width=120",
			want: Defaults{Color: ColorOn, LineWidth: 120},
		},
		{
			name: "unknown color falls back to auto",
			opt:  "color=bogus",
			want: Defaults{Color: ColorAuto, LineWidth: defaultLineWidth},
		},
		{
			name: "zero width ignored",
			opt:  "width=0",
			want: Defaults{Color: ColorAuto, LineWidth: defaultLineWidth},
		},
		{
			name: "paths and unrelated debug token",
			opt:  "debug titles=/tmp/titles.txt keys=/etc/wit/keys",
			want: Defaults{Color: ColorAuto, LineWidth: defaultLineWidth, TitlesDBPath: "/tmp/titles.txt", CommonKeyDir: "/etc/wit/keys"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parse(tt.opt)
			if got != tt.want {
				t.Errorf("parse(%q) = %+v, want %+v", tt.opt, got, tt.want)
			}
		})
	}
}

func TestLoadKeyRingNoDirConfigured(t *testing.T) {
	d := Defaults{}
	ring, err := d.LoadKeyRing()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ring.Keys) != 0 {
		t.Fatalf("expected an empty ring, got %v", ring.Keys)
	}
}

func TestLoadKeyRingMissingManifest(t *testing.T) {
	d := Defaults{CommonKeyDir: t.TempDir()}
	ring, err := d.LoadKeyRing()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ring.Keys) != 0 {
		t.Fatalf("expected an empty ring for an absent manifest, got %v", ring.Keys)
	}
}

func TestLoadKeyRingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	content := "common_keys:\n  normal: 00112233445566778899aabbccddeeff\n  korean: ffeeddccbbaa99887766554433221100\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}

	ring, err := LoadKeyRingFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [16]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	got, err := ring.CommonKey(crypto.CommonKeyNormal)
	if err != nil {
		t.Fatalf("CommonKey(normal): %v", err)
	}
	if got != want {
		t.Errorf("normal key = %x, want %x", got, want)
	}
	if _, ok := ring.Keys[crypto.CommonKeyVWii]; ok {
		t.Errorf("vwii key should be absent, manifest didn't include it")
	}
}

func TestLoadKeyRingFileUnknownSlot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	content := "common_keys:\n  wiiu: 00112233445566778899aabbccddeeff\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}
	if _, err := LoadKeyRingFile(path); err == nil {
		t.Fatalf("expected an error for an unknown common-key slot name")
	}
}

func TestLoadKeyRingFileBadHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.yaml")
	content := "common_keys:\n  normal: not-hex\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}
	if _, err := LoadKeyRingFile(path); err == nil {
		t.Fatalf("expected an error for a malformed hex key")
	}
}
