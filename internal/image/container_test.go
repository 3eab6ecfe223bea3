package image

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func mustTempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestISORoundTrip(t *testing.T) {
	path := mustTempPath(t, "test.iso")
	c, err := CreateISO(path, 0x10000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := bytes.Repeat([]byte{0xAB}, 0x400)
	if _, err := c.WriteAt(want, 0x2000); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, 0x400)
	if _, err := c.ReadAt(got, 0x2000); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("readback mismatch")
	}
	zero := make([]byte, 0x100)
	if _, err := c.ReadAt(zero, 0); err != nil {
		t.Fatalf("read zero region: %v", err)
	}
	for _, b := range zero {
		if b != 0 {
			t.Fatalf("expected unwritten region to read as zero")
		}
	}
	c.Close()
}

func TestCISORoundTrip(t *testing.T) {
	path := mustTempPath(t, "test.ciso")
	const blockSize = 0x800
	c, err := CreateCISO(path, 0x8000, blockSize)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	block := bytes.Repeat([]byte{0x5A}, blockSize)
	if _, err := c.WriteAt(block, 3*blockSize); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenCISO(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got := make([]byte, blockSize)
	if _, err := reopened.ReadAt(got, 3*blockSize); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, block) {
		t.Fatalf("readback mismatch after reopen")
	}
	untouched := make([]byte, blockSize)
	if _, err := reopened.ReadAt(untouched, 0); err != nil {
		t.Fatalf("read untouched block: %v", err)
	}
	for _, b := range untouched {
		if b != 0 {
			t.Fatalf("expected untouched block to read as zero")
		}
	}
}

func TestWDF1RoundTripUncompressed(t *testing.T) {
	path := mustTempPath(t, "test.wdf")
	c, err := CreateWDF(path, 0x100000, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	payload := bytes.Repeat([]byte{0x11, 0x22}, 0x200)
	if _, err := c.WriteAt(payload, 0x40000); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenWDF(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got := make([]byte, len(payload))
	if _, err := reopened.ReadAt(got, 0x40000); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("readback mismatch")
	}
	gap := make([]byte, 0x100)
	if _, err := reopened.ReadAt(gap, 0); err != nil {
		t.Fatalf("read gap: %v", err)
	}
	for _, b := range gap {
		if b != 0 {
			t.Fatalf("expected gap before first chunk to read as zero")
		}
	}
}

func TestGCZRawBlockRoundTrip(t *testing.T) {
	path := mustTempPath(t, "test.gcz")
	const blockSize = 0x1000
	c, err := CreateGCZ(path, 0x10000, blockSize)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	payload := bytes.Repeat([]byte{0x7E}, blockSize)
	if _, err := c.WriteAt(payload, 2*blockSize); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := make([]byte, blockSize)
	if _, err := c.ReadAt(got, 2*blockSize); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("readback mismatch")
	}
	c.Close()
}

func TestWBFSDiscRoundTrip(t *testing.T) {
	path := mustTempPath(t, "test.wbfs")
	id6 := [6]byte{'G', 'A', 'F', 'E', '0', '1'}
	inode := WBFSInodeInfo{InfoVersion: 1}
	const secSize = 0x4000
	c, err := CreateWBFSDisc(path, 0x40000, secSize, id6, inode)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	payload := bytes.Repeat([]byte{0x99}, secSize)
	if _, err := c.WriteAt(payload, secSize); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenWBFSDisc(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got := make([]byte, secSize)
	if _, err := reopened.ReadAt(got, secSize); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("readback mismatch")
	}
	wc := reopened.(*wbfsContainer)
	if wc.ID6 != id6 {
		t.Fatalf("id6 mismatch: got %v want %v", wc.ID6, id6)
	}
}

func TestHasMBRPartitionTableNonDisk(t *testing.T) {
	path := mustTempPath(t, "plain.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, 0x1000), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := HasMBRPartitionTable(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected a plain zero-filled file to carry no MBR")
	}
}
