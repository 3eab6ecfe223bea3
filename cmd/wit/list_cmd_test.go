package main

import (
	"strings"
	"testing"
)

func resetListFlags() {
	listInteractive = false
}

func TestCreateListCommandMetadata(t *testing.T) {
	defer resetListFlags()
	cmd := createListCommand()
	if cmd.Use != "list [flags] IMAGE_FILE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	found := false
	for _, alias := range cmd.Aliases {
		if alias == "files" {
			found = true
		}
	}
	if !found {
		t.Error("expected 'files' alias to be registered")
	}
	if cmd.Flags().Lookup("interactive") == nil {
		t.Error("--interactive flag should be registered")
	}
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("should reject zero arguments")
	}
	if err := cmd.Args(cmd, []string{"a.iso"}); err != nil {
		t.Errorf("should accept exactly one argument: %v", err)
	}
}

func TestExecuteList_MissingFile(t *testing.T) {
	defer resetListFlags()
	cmd := createListCommand()
	_, err := execCmd(t, cmd, "/nonexistent/does-not-exist.iso")
	if err == nil {
		t.Fatal("expected an error for a missing image file")
	}
	if !strings.Contains(err.Error(), "listing files") {
		t.Errorf("expected error to be wrapped with context, got: %v", err)
	}
}
