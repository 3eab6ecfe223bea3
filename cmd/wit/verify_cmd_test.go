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

func resetVerifyFlags() {
	verifyDeep = false
	verifyReportZst = ""
	runVerify = pipeline.VerifyDisc
}

func TestExecuteVerify_Clean(t *testing.T) {
	defer resetVerifyFlags()
	runVerify = func(path string, opts pipeline.VerifyOptions) (*pipeline.VerifyResult, error) {
		return &pipeline.VerifyResult{PartitionsChecked: 1}, nil
	}
	cmd := createVerifyCommand()
	out, err := execCmd(t, cmd, "a.iso")
	if err != nil {
		t.Errorf("expected no error for a clean verify, got: %v", err)
	}
	if !strings.Contains(out, "partitions checked: 1") {
		t.Errorf("expected partition count in output, got: %s", out)
	}
}

func TestExecuteVerify_WithIssues(t *testing.T) {
	defer resetVerifyFlags()
	runVerify = func(path string, opts pipeline.VerifyOptions) (*pipeline.VerifyResult, error) {
		return &pipeline.VerifyResult{
			PartitionsChecked: 1,
			Issues:            []pipeline.VerifyIssue{{PartitionOffset: 0x100, Cluster: 3, Message: "hash mismatch"}},
		}, nil
	}
	cmd := createVerifyCommand()
	out, err := execCmd(t, cmd, "a.iso")
	if err == nil {
		t.Fatal("expected an error when issues are found")
	}
	if !strings.Contains(out, "hash mismatch") {
		t.Errorf("expected issue message in output, got: %s", out)
	}
}

func TestExecuteVerify_ReportZst(t *testing.T) {
	defer resetVerifyFlags()
	runVerify = func(path string, opts pipeline.VerifyOptions) (*pipeline.VerifyResult, error) {
		return &pipeline.VerifyResult{PartitionsChecked: 2}, nil
	}
	cmd := createVerifyCommand()
	dest := filepath.Join(t.TempDir(), "report.zst")
	if _, err := execCmd(t, cmd, "--report-zst", dest, "a.iso"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	compressed, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("expected report-zst file to exist: %v", err)
	}
	raw, err := zstd.Decompress(nil, compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !strings.Contains(string(raw), "partitions checked: 2") {
		t.Errorf("expected decompressed report to contain the partition count, got: %s", raw)
	}
}

func TestExecuteVerify_RunnerError(t *testing.T) {
	defer resetVerifyFlags()
	runVerify = func(path string, opts pipeline.VerifyOptions) (*pipeline.VerifyResult, error) {
		return nil, errors.New("boom")
	}
	cmd := createVerifyCommand()
	_, err := execCmd(t, cmd, "a.iso")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}
