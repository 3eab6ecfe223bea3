package main

import "testing"

func resetRenameFlags() {
	renameID6 = ""
	renameTitle = ""
}

func TestCreateRenameCommandMetadata(t *testing.T) {
	defer resetRenameFlags()
	cmd := createRenameCommand()
	if cmd.Use != "rename [flags] SRC_IMAGE DST_IMAGE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	for _, name := range []string{"id6", "title"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
}

func TestExecuteRename_RequiresAtLeastOneField(t *testing.T) {
	defer resetRenameFlags()
	cmd := createRenameCommand()
	if _, err := execCmd(t, cmd, "src.iso", "dst.iso"); err == nil {
		t.Error("expected an error when neither --id6 nor --title is set")
	}
}
