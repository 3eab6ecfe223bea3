package main

import (
	"os"

	"github.com/DataDog/zstd"

	"github.com/wiimm/witcore/internal/werr"
)

// writeReportZst zstd-compresses data and writes it to path, for
// callers that want a standalone copy of a VERIFY/DIFF report (e.g. to
// archive alongside CI logs) without re-running the command against
// the same images.
func writeReportZst(path string, data []byte) error {
	compressed, err := zstd.Compress(nil, data)
	if err != nil {
		return werr.Wrap(werr.KindFatal, err, "compressing report")
	}
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return werr.Wrap(werr.KindIO, err, "writing report-zst file")
	}
	return nil
}
