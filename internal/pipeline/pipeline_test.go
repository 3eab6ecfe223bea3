package pipeline

import "testing"

func TestDiffKindString(t *testing.T) {
	cases := []struct {
		kind DiffKind
		want string
	}{
		{DiffOnlyInA, "only-in-a"},
		{DiffOnlyInB, "only-in-b"},
		{DiffSizeMismatch, "size-mismatch"},
		{DiffContentMismatch, "content-mismatch"},
		{DiffIdentical, "identical"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("DiffKind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestDiffResultDiffers(t *testing.T) {
	clean := &DiffResult{Entries: []DiffEntry{{Path: "a", Kind: DiffIdentical}}}
	if clean.Differs() {
		t.Fatalf("all-identical result should not differ")
	}
	dirty := &DiffResult{Entries: []DiffEntry{
		{Path: "a", Kind: DiffIdentical},
		{Path: "b", Kind: DiffContentMismatch},
	}}
	if !dirty.Differs() {
		t.Fatalf("result with a content mismatch should differ")
	}
}

func TestVerifyResultOK(t *testing.T) {
	clean := &VerifyResult{PartitionsChecked: 2}
	if !clean.OK() {
		t.Fatalf("result with no issues should be OK")
	}
	dirty := &VerifyResult{PartitionsChecked: 2, Issues: []VerifyIssue{{Cluster: 3, Message: "boom"}}}
	if dirty.OK() {
		t.Fatalf("result with an issue should not be OK")
	}
}

func TestFileMapLookup(t *testing.T) {
	m := &FileMap{Entries: []FileMapEntry{
		{Path: "files/readme.txt", Size: 42},
		{Path: "files/data.bin", Size: 1024, System: false},
	}}
	got, ok := m.Lookup("files/data.bin")
	if !ok || got.Size != 1024 {
		t.Fatalf("Lookup(files/data.bin) = %+v, %v", got, ok)
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Fatalf("Lookup should report false for an absent path")
	}
}

func TestFileMapEntryString(t *testing.T) {
	f := FileMapEntry{Path: "main.dol", Size: 100, System: true}
	s := f.String()
	if s == "" {
		t.Fatalf("String() should not be empty")
	}
	if got, want := s[:6], "system"; got != want {
		t.Fatalf("String() kind prefix = %q, want %q", got, want)
	}
}
