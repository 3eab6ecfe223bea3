package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/wiimm/witcore/internal/crypto"
)

func resetDumpFlags() {
	dumpFormat = "text"
	dumpPretty = false
	dumpDeep = false
	summarizeDump = summarizeDisc
}

func TestCreateDumpCommandMetadata(t *testing.T) {
	defer resetDumpFlags()
	cmd := createDumpCommand()
	if cmd.Use != "dump [flags] IMAGE_FILE" {
		t.Errorf("unexpected Use: %q", cmd.Use)
	}
	if cmd.Flags().Lookup("format") == nil {
		t.Error("--format flag should be registered")
	}
	if cmd.Flags().Lookup("deep") == nil {
		t.Error("--deep flag should be registered")
	}
	if err := cmd.Args(cmd, []string{"a.iso"}); err != nil {
		t.Errorf("should accept exactly one argument: %v", err)
	}
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("should reject zero arguments")
	}
}

func TestExecuteDump_OutputFormats(t *testing.T) {
	defer resetDumpFlags()
	fake := &DumpSummary{File: "fake.iso", ContainerKind: "ISO", ID6: "GALE01", Title: "Test Game"}
	summarizeDump = func(path string, keys *crypto.KeyRing, deep bool) (*DumpSummary, error) {
		return fake, nil
	}

	t.Run("text", func(t *testing.T) {
		dumpFormat = "text"
		cmd := createDumpCommand()
		out, err := execCmd(t, cmd, "fake.iso")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "GALE01") {
			t.Errorf("expected id6 in text output, got: %s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		dumpFormat = "json"
		cmd := createDumpCommand()
		out, err := execCmd(t, cmd, "fake.iso")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got DumpSummary
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid json: %v\nout:\n%s", err, out)
		}
		if got.ID6 != "GALE01" {
			t.Errorf("got ID6=%q, want GALE01", got.ID6)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		dumpFormat = "yaml"
		cmd := createDumpCommand()
		out, err := execCmd(t, cmd, "fake.iso")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got DumpSummary
		if err := yaml.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid yaml: %v\nout:\n%s", err, out)
		}
		if got.ID6 != "GALE01" {
			t.Errorf("got ID6=%q, want GALE01", got.ID6)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		dumpFormat = "bogus"
		cmd := createDumpCommand()
		_, err := execCmd(t, cmd, "fake.iso")
		if err == nil || !strings.Contains(err.Error(), "unsupported --format") {
			t.Errorf("expected unsupported-format error, got: %v", err)
		}
	})
}

func TestExecuteDump_SummarizerError(t *testing.T) {
	defer resetDumpFlags()
	summarizeDump = func(path string, keys *crypto.KeyRing, deep bool) (*DumpSummary, error) {
		return nil, errors.New("boom")
	}
	cmd := createDumpCommand()
	_, err := execCmd(t, cmd, "fake.iso")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}
