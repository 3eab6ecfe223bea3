package main

import (
	"strings"
	"testing"
)

func resetExtractFlags() {
	extractSystemFiles = false
}

func TestCreateExtractCommandMetadata(t *testing.T) {
	defer resetExtractFlags()
	cmd := createExtractCommand()
	if cmd.Use != "extract [flags] IMAGE_FILE DEST_DIR" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	if cmd.Flags().Lookup("system") == nil {
		t.Error("--system flag should be registered")
	}
	if err := cmd.Args(cmd, []string{"a.iso"}); err == nil {
		t.Error("should reject a single argument")
	}
	if err := cmd.Args(cmd, []string{"a.iso", "outdir"}); err != nil {
		t.Errorf("should accept exactly two arguments: %v", err)
	}
}

func TestExecuteExtract_MissingFile(t *testing.T) {
	defer resetExtractFlags()
	cmd := createExtractCommand()
	_, err := execCmd(t, cmd, "/nonexistent/does-not-exist.iso", t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a missing image file")
	}
	if !strings.Contains(err.Error(), "building file map") {
		t.Errorf("expected error to be wrapped with context, got: %v", err)
	}
}
