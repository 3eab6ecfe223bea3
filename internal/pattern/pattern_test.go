package pattern

import "testing"

func TestGlobBasic(t *testing.T) {
	cases := []struct {
		pattern, text string
		want          bool
	}{
		{"*.bin", "main.dol", false},
		{"*.dol", "main.dol", true},
		{"/sys/*", "/sys/boot.bin", true},
		{"/sys/*", "/sys/sub/boot.bin", false},
		{"/sys/**", "/sys/sub/boot.bin", true},
		{"/disc/*$", "/disc/game.iso", true},
		{"/disc/*$", "/disc/sub/x", false},
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file12.txt", false},
	}
	for _, c := range cases {
		if got := Glob(c.pattern, c.text, '/'); got != c.want {
			t.Errorf("Glob(%q, %q) = %v, want %v", c.pattern, c.text, got, c.want)
		}
	}
}

func TestSetMatchAllDefault(t *testing.T) {
	s := NewSet()
	if !s.Match("anything", '/') {
		t.Fatalf("empty ruleset should match everything")
	}
}

func TestSetPlusMinusOrdering(t *testing.T) {
	s := NewSet()
	if err := s.Add("+/sys/*;-/sys/secret.bin"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.Match("/sys/boot.bin", '/') {
		t.Fatalf("expected /sys/boot.bin to match")
	}
	// The first matching rule decides: "+/sys/*" matches before the
	// later "-/sys/secret.bin" is reached.
	if !s.Match("/sys/secret.bin", '/') {
		t.Fatalf("expected /sys/secret.bin to be included by the earlier +/sys/* rule")
	}
	// The tail default takes the polarity of the *last* rule in the
	// list, regardless of whether that rule itself matched: a
	// trailing '-' rule behaves like a blacklist (everything else
	// defaults to included), matching the original tool's semantics.
	if !s.Match("/files/readme.txt", '/') {
		t.Fatalf("expected unmatched path to default to included, since the last rule was '-'")
	}
}

func TestSetBareMinusMatchesNone(t *testing.T) {
	s := NewSet()
	if err := s.Add("-"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Match("/anything", '/') {
		t.Fatalf("bare '-' ruleset should match nothing")
	}
}

func TestSetNegate(t *testing.T) {
	s := NewSet()
	if err := s.Add("+/sys/*"); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.DefineNegate(true)
	if s.Match("/sys/boot.bin", '/') {
		t.Fatalf("expected negated match to invert the result")
	}
}

func TestSetMacroNegate(t *testing.T) {
	s := NewSet()
	if err := s.Add(":negate"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("+/sys/*"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Match("/sys/boot.bin", '/') {
		t.Fatalf("expected :negate macro to invert the result")
	}
}

func TestSetMacroExpansion(t *testing.T) {
	s := NewSet()
	if err := s.Add(":disc"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.Match("/disc/game.bin", '/') {
		t.Fatalf("expected :disc macro to expand to +/disc/")
	}
}

func TestSetUnknownMacro(t *testing.T) {
	s := NewSet()
	if err := s.Add(":nosuchmacro"); err == nil {
		t.Fatalf("expected error for unknown macro")
	}
}

func TestSetNumericSkipRule(t *testing.T) {
	s := NewSet()
	// "1-/sys/secret.bin;+/sys/*": if /sys/secret.bin does NOT match
	// the current text, skip the next rule (the "+/sys/*").
	if err := s.Add("1-/sys/secret.bin;+/sys/*"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Match("/sys/boot.bin", '/') {
		t.Fatalf("expected the skip rule to suppress the following +/sys/* for non-secret paths")
	}
	if !s.Match("/sys/secret.bin", '/') {
		t.Fatalf("expected /sys/secret.bin to match the '+/sys/*' rule once the skip is not engaged")
	}
}

func TestRegistryEffectiveSetFallback(t *testing.T) {
	r := NewRegistry()
	if err := r.Set(PatDefault).Add("+/*$"); err != nil {
		t.Fatalf("add: %v", err)
	}
	eff := r.EffectiveSet(PatFiles)
	if eff != r.Set(PatDefault) {
		t.Fatalf("expected empty PatFiles to fall back to PatDefault")
	}
}

func TestRegistryMoveParam(t *testing.T) {
	r := NewRegistry()
	if err := r.Set(PatParam).Add("+/game.iso"); err != nil {
		t.Fatalf("add: %v", err)
	}
	dest := NewSet()
	r.MoveParam(dest)
	if !dest.Match("/game.iso", '/') {
		t.Fatalf("expected moved ruleset to match /game.iso")
	}
	if len(r.Set(PatParam).rules) != 0 {
		t.Fatalf("expected PAT_PARAM to be reset after move")
	}
}
