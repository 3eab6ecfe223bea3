package pattern

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMacroPack_Success(t *testing.T) {
	defer ResetMacroPack()
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.json")
	if err := os.WriteFile(path, []byte(`{"macros":{"custom":"+/custom/;-/custom/skip"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadMacroPack(path); err != nil {
		t.Fatalf("LoadMacroPack failed: %v", err)
	}

	s := NewSet()
	if err := s.Add(":custom"); err != nil {
		t.Fatalf("expected :custom to resolve: %v", err)
	}
	if len(s.rules) != 2 {
		t.Errorf("expected 2 rules from the expanded macro, got %d", len(s.rules))
	}
}

func TestLoadMacroPack_RejectsWrongShape(t *testing.T) {
	defer ResetMacroPack()
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.json")
	if err := os.WriteFile(path, []byte(`{"macros":{"bad":123}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadMacroPack(path); err == nil {
		t.Error("expected a schema-validation error for a non-string macro value")
	}
}

func TestLoadMacroPack_RejectsUnknownTopLevelField(t *testing.T) {
	defer ResetMacroPack()
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.json")
	if err := os.WriteFile(path, []byte(`{"macros":{"x":"+/x/"},"extra":true}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadMacroPack(path); err == nil {
		t.Error("expected a schema-validation error for an unexpected top-level field")
	}
}

func TestLoadMacroPack_RejectsShadowingBuiltin(t *testing.T) {
	defer ResetMacroPack()
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.json")
	if err := os.WriteFile(path, []byte(`{"macros":{"disc":"+/whatever/"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	err := LoadMacroPack(path)
	if err == nil || !strings.Contains(err.Error(), "shadows a built-in macro") {
		t.Errorf("expected a shadowing error, got: %v", err)
	}
}

func TestLoadMacroPack_MissingFile(t *testing.T) {
	if err := LoadMacroPack("/nonexistent/pack.json"); err == nil {
		t.Error("expected an error for a missing pack file")
	}
}
