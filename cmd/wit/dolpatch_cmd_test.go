package main

import "testing"

func resetDolpatchFlags() {
	dolpatchDOLFile = ""
	dolpatchPath = "sys/main.dol"
	dolpatchOffset = 0
	dolpatchFakeSign = false
}

func TestCreateDolpatchCommandMetadata(t *testing.T) {
	defer resetDolpatchFlags()
	cmd := createDolpatchCommand()
	if cmd.Use != "dolpatch [flags] SRC_IMAGE DST_IMAGE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	if got := cmd.Flags().Lookup("path").DefValue; got != "sys/main.dol" {
		t.Errorf("unexpected default --path: %q", got)
	}
	for _, name := range []string{"file", "path", "offset", "fake-sign"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
}

func TestExecuteDolpatch_RequiresFile(t *testing.T) {
	defer resetDolpatchFlags()
	cmd := createDolpatchCommand()
	if _, err := execCmd(t, cmd, "src.iso", "dst.iso"); err == nil {
		t.Error("expected an error when --file is missing")
	}
}

func TestExecuteDolpatch_MissingHostFile(t *testing.T) {
	defer resetDolpatchFlags()
	cmd := createDolpatchCommand()
	if _, err := execCmd(t, cmd, "--file", "/nonexistent/does-not-exist", "src.iso", "dst.iso"); err == nil {
		t.Error("expected an error when the host file doesn't exist")
	}
}
