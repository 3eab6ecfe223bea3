package main

import "testing"

func resetCreateFlags() {
	createSourceImage = ""
	createOverrideDir = ""
	createFakeSign = false
}

func TestCreateCreateCommandMetadata(t *testing.T) {
	defer resetCreateFlags()
	cmd := createCreateCommand()
	if cmd.Use != "create [flags] MANIFEST_FILE DST_IMAGE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	for _, name := range []string{"source", "override-dir", "fake-sign"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
}

func TestExecuteCreate_RequiresSource(t *testing.T) {
	defer resetCreateFlags()
	cmd := createCreateCommand()
	if _, err := execCmd(t, cmd, "manifest.yaml", "dst.iso"); err == nil {
		t.Error("expected an error when --source is missing")
	}
}

func TestExecuteCreate_MissingManifest(t *testing.T) {
	defer resetCreateFlags()
	cmd := createCreateCommand()
	if _, err := execCmd(t, cmd, "--source", "src.iso", "/nonexistent/manifest.yaml", "dst.iso"); err == nil {
		t.Error("expected an error for a missing manifest file")
	}
}
