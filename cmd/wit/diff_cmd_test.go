package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DataDog/zstd"

	"github.com/wiimm/witcore/internal/pipeline"
)

func resetDiffFlags() {
	diffFormat = "text"
	diffPretty = false
	diffSkipIdentical = true
	diffReportZst = ""
	runDiff = pipeline.DiffDisc
}

func TestCreateDiffCommandMetadata(t *testing.T) {
	defer resetDiffFlags()
	cmd := createDiffCommand()
	if cmd.Use != "diff [flags] IMAGE_FILE1 IMAGE_FILE2" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	if err := cmd.Args(cmd, []string{"a.iso"}); err == nil {
		t.Error("should reject one argument")
	}
	if err := cmd.Args(cmd, []string{"a.iso", "b.iso"}); err != nil {
		t.Errorf("should accept two arguments: %v", err)
	}
}

func TestExecuteDiff_ReportsDiffer(t *testing.T) {
	defer resetDiffFlags()
	runDiff = func(a, b string, opts pipeline.DiffOptions) (*pipeline.DiffResult, error) {
		return &pipeline.DiffResult{Entries: []pipeline.DiffEntry{
			{Path: "files/data.bin", Kind: pipeline.DiffContentMismatch},
		}}, nil
	}
	cmd := createDiffCommand()
	out, err := execCmd(t, cmd, "a.iso", "b.iso")
	if err == nil {
		t.Fatal("expected a Differ error when entries differ")
	}
	if !strings.Contains(out, "content-mismatch") {
		t.Errorf("expected diff kind in output, got: %s", out)
	}
}

func TestExecuteDiff_NoDifference(t *testing.T) {
	defer resetDiffFlags()
	runDiff = func(a, b string, opts pipeline.DiffOptions) (*pipeline.DiffResult, error) {
		return &pipeline.DiffResult{}, nil
	}
	cmd := createDiffCommand()
	_, err := execCmd(t, cmd, "a.iso", "b.iso")
	if err != nil {
		t.Errorf("expected no error for identical images, got: %v", err)
	}
}

func TestExecuteDiff_ReportZst(t *testing.T) {
	defer resetDiffFlags()
	runDiff = func(a, b string, opts pipeline.DiffOptions) (*pipeline.DiffResult, error) {
		return &pipeline.DiffResult{Entries: []pipeline.DiffEntry{
			{Path: "files/data.bin", Kind: pipeline.DiffContentMismatch},
		}}, nil
	}
	cmd := createDiffCommand()
	dest := filepath.Join(t.TempDir(), "report.zst")
	_, err := execCmd(t, cmd, "--report-zst", dest, "a.iso", "b.iso")
	if err == nil {
		t.Fatal("expected a Differ error when entries differ")
	}

	compressed, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("expected report-zst file to exist: %v", err)
	}
	raw, err := zstd.Decompress(nil, compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !strings.Contains(string(raw), "files/data.bin") {
		t.Errorf("expected decompressed report to contain the diff entry, got: %s", raw)
	}
}

func TestExecuteDiff_RunnerError(t *testing.T) {
	defer resetDiffFlags()
	runDiff = func(a, b string, opts pipeline.DiffOptions) (*pipeline.DiffResult, error) {
		return nil, errors.New("boom")
	}
	cmd := createDiffCommand()
	_, err := execCmd(t, cmd, "a.iso", "b.iso")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}
