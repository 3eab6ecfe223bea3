package security

import "testing"

func TestValidateString_Basics(t *testing.T) {
	lim := DefaultLimits()
	if err := ValidateString("ok", "hello", lim); err != nil {
		t.Fatal(err)
	}
	if err := ValidateString("nul", "a\x00b", lim); err == nil {
		t.Fatal("expected NUL reject")
	}
	if err := ValidateString("nonprint", "ab", lim); err == nil {
		t.Fatal("expected control char reject")
	}
	if err := ValidateString("badutf8", string([]byte{0xff, 0xfe, 0xfd}), lim); err == nil {
		t.Fatal("expected invalid UTF-8 reject")
	}
}

func TestValidateString_DiscFieldLimits(t *testing.T) {
	lim := DiscFieldLimits()
	if err := ValidateString("id6", "GALE01", lim); err != nil {
		t.Fatalf("valid id6 rejected: %v", err)
	}
	if err := ValidateString("title", "Super Game Title", lim); err != nil {
		t.Fatalf("valid title rejected: %v", err)
	}
}
