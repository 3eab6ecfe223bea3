package main

import (
	"strings"
	"testing"
)

func resetEditFlags() {
	editID6 = ""
	editTitle = ""
	editSetFiles = nil
	editFakeSign = false
}

func TestCreateEditCommandMetadata(t *testing.T) {
	defer resetEditFlags()
	cmd := createEditCommand()
	if cmd.Use != "edit [flags] SRC_IMAGE DST_IMAGE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	for _, name := range []string{"id6", "title", "set-file", "fake-sign"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
	if err := cmd.Args(cmd, []string{"a.iso"}); err == nil {
		t.Error("should reject a single argument")
	}
}

func TestBuildEditOptions_BadID6Length(t *testing.T) {
	defer resetEditFlags()
	editID6 = "short"
	if _, err := buildEditOptions(); err == nil || !strings.Contains(err.Error(), "--id6") {
		t.Errorf("expected an --id6 length error, got: %v", err)
	}
}

func TestBuildEditOptions_BadSetFileSyntax(t *testing.T) {
	defer resetEditFlags()
	editSetFiles = []string{"no-equals-sign"}
	if _, err := buildEditOptions(); err == nil || !strings.Contains(err.Error(), "--set-file") {
		t.Errorf("expected a --set-file syntax error, got: %v", err)
	}
}

func TestBuildEditOptions_MissingHostFile(t *testing.T) {
	defer resetEditFlags()
	editSetFiles = []string{"sys/main.dol=/nonexistent/does-not-exist"}
	if _, err := buildEditOptions(); err == nil {
		t.Error("expected an error for a missing host file")
	}
}

func TestBuildEditOptions_ID6AndTitle(t *testing.T) {
	defer resetEditFlags()
	editID6 = "GALE01"
	editTitle = "New Title"
	opts, err := buildEditOptions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.ID6 == nil || string(opts.ID6[:]) != "GALE01" {
		t.Errorf("unexpected ID6: %+v", opts.ID6)
	}
	if opts.Title == nil || !strings.HasPrefix(string(opts.Title[:]), "New Title") {
		t.Errorf("unexpected Title: %+v", opts.Title)
	}
}
