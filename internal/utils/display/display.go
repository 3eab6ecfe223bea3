// Package display renders a short, human-facing summary once a
// COPY/EDIT/CREATE/DOLPATCH/RENAME run finishes writing a destination
// disc image.
package display

import (
	"fmt"
	"os"

	"github.com/wiimm/witcore/internal/logger"
)

// Summary describes one completed write for PrintImageSummary.
type Summary struct {
	Path              string
	Format            string
	BytesWritten      int64
	PartitionsPatched int
}

// PrintImageSummary logs a boxed success banner plus s's size and, if
// any partitions were rebuilt, how many, for a finished image build.
func PrintImageSummary(s Summary) {
	log := logger.Logger()

	sizeStr := "unknown"
	if info, err := os.Stat(s.Path); err == nil {
		sizeStr = humanSize(info.Size())
	} else if s.BytesWritten > 0 {
		sizeStr = humanSize(s.BytesWritten)
	}

	log.Info("")
	log.Info("╔════════════════════════════════════════════════════════════════════════════╗")
	log.Info("║                    ✓ IMAGE WRITTEN SUCCESSFULLY                              ║")
	log.Info("╚════════════════════════════════════════════════════════════════════════════╝")
	log.Info("")
	log.Infof("  Format:  %s", s.Format)
	log.Infof("  Path:    %s (%s)", s.Path, sizeStr)
	if s.PartitionsPatched > 0 {
		log.Infof("  Rebuilt: %d partition(s) re-hashed and re-encrypted", s.PartitionsPatched)
	}
	log.Info("════════════════════════════════════════════════════════════════════════════")
	log.Info("")
}

func humanSize(n int64) string {
	mb := float64(n) / (1024 * 1024)
	if mb > 1024 {
		return fmt.Sprintf("%.2f GB", mb/1024)
	}
	return fmt.Sprintf("%.2f MB", mb)
}
