package main

import "testing"

func TestCreateCertCommandMetadata(t *testing.T) {
	cmd := createCertCommand()
	if cmd.Use != "cert [flags] IMAGE_FILE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("should reject zero arguments")
	}
	if err := cmd.Args(cmd, []string{"a.iso", "b.iso"}); err == nil {
		t.Error("should reject two arguments")
	}
}

func TestExecuteCert_MissingFile(t *testing.T) {
	cmd := createCertCommand()
	if _, err := execCmd(t, cmd, "/nonexistent/does-not-exist.iso"); err == nil {
		t.Error("expected an error for a missing image file")
	}
}
