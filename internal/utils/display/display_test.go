package display

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHumanSize(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{512 * 1024, "0.50 MB"},
		{1500 * 1024 * 1024, "1.46 GB"},
	}
	for _, c := range cases {
		if got := humanSize(c.n); got != c.want {
			t.Errorf("humanSize(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

// PrintImageSummary logs through the package-wide zap logger rather
// than returning a string, so this only checks it doesn't panic on a
// real or missing file.
func TestPrintImageSummary_DoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.iso")
	if err := os.WriteFile(path, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}

	PrintImageSummary(Summary{Path: path, Format: "ISO", BytesWritten: 4096, PartitionsPatched: 1})
	PrintImageSummary(Summary{Path: filepath.Join(dir, "missing.iso"), Format: "ISO", BytesWritten: 2048})
}
