// Package pattern implements the path-pattern rule engine: an ordered
// list of "+pattern"/"-pattern"/"Nsign pattern" rules, evaluated
// linearly against a path to decide whether a file inside a disc image
// is included.
package pattern

import (
	"fmt"
	"strconv"
)

// Kind identifies which ruleset registry a rule belongs to.
type Kind int

const (
	PatFiles Kind = iota
	PatRmFiles
	PatZeroFiles
	PatIgnoreFiles
	PatFakeSign
	PatDefault
	PatParam

	patCount
)

func (k Kind) String() string {
	switch k {
	case PatFiles:
		return "files"
	case PatRmFiles:
		return "rm-files"
	case PatZeroFiles:
		return "zero-files"
	case PatIgnoreFiles:
		return "ignore-files"
	case PatFakeSign:
		return "fake-sign"
	case PatDefault:
		return "default"
	case PatParam:
		return "param"
	default:
		return "unknown"
	}
}

// sign distinguishes an include ('+') rule from an exclude ('-') rule.
type sign int

const (
	signMinus sign = iota
	signPlus
)

// rule is one compiled entry in a ruleset: either a plain +/- match
// rule, or a numeric-prefixed rule that sets a skip counter when its
// own pattern match condition holds.
type rule struct {
	sign      sign
	pattern   string
	skipCount int // >0 only for numeric-prefixed rules ("3+/foo")
	hasSkip   bool
}

// macroEntry expands a ":name" token into one or more ';'-separated
// rule strings, ported verbatim from match-pattern.c's macro_tab.
type macroEntry struct {
	name   string
	expand string
}

var macroTable = []macroEntry{
	{"base", "+/*$"},
	{"nobase", "-/*$"},
	{"disc", "+/disc/"},
	{"nodisc", "-/disc/"},
	{"sys", "+/sys/"},
	{"nosys", "-/sys/"},
	{"files", "+/files/"},
	{"nofiles", "-/files/"},
	{"wit", "4+/h3.bin;3+/sys/user.bin;2+/sys/fst.bin;1+/sys/fst+.bin;+"},
	{"wwt", "4+/h3.bin;3+/sys/user.bin;2+/sys/fst.bin;1+/sys/fst+.bin;+"},
	{"compose", "+/cert.bin;4+/disc/;3+/*$;2+/sys/fst.bin;1+/sys/fst+.bin;+"},
	{"neek", "3+/setup.txt;2+/h3.bin;1+/disc/;+"},
	{"sneek", "3+/setup.txt;2+/h3.bin;1+/disc/;+"},
}

// Set is a single ruleset (one enumPattern slot's worth of rules),
// equivalent to match-pattern.c's FilePattern_t.
type Set struct {
	rules []rule

	isActive bool
	isDirty  bool
	matchAll bool
	matchNone bool

	macroNegate  bool
	userNegate   bool
	activeNegate bool
}

// NewSet returns an empty, inactive ruleset.
func NewSet() *Set { return &Set{} }

// Add parses arg — one or more ';'-separated rule tokens, optionally
// including ':macro' references — and appends the resulting rules to
// s. Mirrors AddFilePattern's recursive-descent parse.
func (s *Set) Add(arg string) error {
	s.isActive = true
	for len(arg) > 0 {
		start := arg
		ok := false
		i := 0
		if arg[0] >= '1' && arg[0] <= '9' {
			for i < len(arg) && arg[i] >= '0' && arg[i] <= '9' {
				i++
			}
			if i < len(arg) && (arg[i] == '+' || arg[i] == '-') {
				ok = true
			} else {
				i = 0
			}
		}
		if !ok && !(len(arg) > 0 && (arg[0] == '+' || arg[0] == '-' || arg[0] == ':' || arg[0] == '=')) {
			return fmt.Errorf("pattern: rule must begin with '+', '-' or ':': %.20s", arg)
		}

		j := i
		for j < len(arg) && arg[j] != ';' {
			j++
		}
		token := start[:j]
		rest := ""
		if j < len(arg) {
			rest = arg[j+1:]
			for len(rest) > 0 && rest[0] == ';' {
				rest = rest[1:]
			}
		}

		if token[0] == ':' || token[0] == '=' {
			name := token[1:]
			if err := s.expandMacro(name); err != nil {
				return err
			}
		} else {
			r, err := parseRuleToken(token)
			if err != nil {
				return err
			}
			s.rules = append(s.rules, r)
			s.isDirty = true
		}

		arg = rest
	}
	return nil
}

func (s *Set) expandMacro(name string) error {
	for _, m := range macroTable {
		if m.name == name {
			return s.Add(m.expand)
		}
	}
	if name == "negate" {
		s.macroNegate = true
		s.activeNegate = s.macroNegate != s.userNegate
		return nil
	}
	if expand, ok := extraMacros[name]; ok {
		return s.Add(expand)
	}
	return fmt.Errorf("pattern: macro %q not found", name)
}

func parseRuleToken(token string) (rule, error) {
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	var r rule
	if i > 0 {
		n, err := strconv.Atoi(token[:i])
		if err != nil {
			return r, fmt.Errorf("pattern: bad skip count in %q", token)
		}
		r.skipCount = n
		r.hasSkip = true
	}
	if i >= len(token) {
		return r, fmt.Errorf("pattern: empty rule")
	}
	switch token[i] {
	case '+':
		r.sign = signPlus
	case '-':
		r.sign = signMinus
	default:
		return r, fmt.Errorf("pattern: rule %q must have '+' or '-' after any skip count", token)
	}
	r.pattern = token[i+1:]
	return r, nil
}

// DefineNegate sets the user-controlled negate flag (e.g. from a
// --negate command-line option) and recomputes the active negation as
// macroNegate XOR userNegate.
func (s *Set) DefineNegate(negate bool) {
	s.userNegate = negate
	s.activeNegate = s.macroNegate != s.userNegate
}

// Setup finalizes a dirty ruleset: classifies bare "+"/"+*"/"+**" as
// match-all and "-"/"-*"/"-**" as match-none. Returns whether the
// ruleset is active and not a blanket match-none (a convenience used by
// callers deciding whether to bother calling Match at all).
func (s *Set) Setup() bool {
	if s.isDirty {
		s.isActive = true
		s.isDirty = false
		s.matchAll = false
		s.matchNone = false

		if len(s.rules) == 0 {
			s.matchAll = true
		} else {
			first := s.rules[0]
			if !first.hasSkip {
				switch {
				case first.sign == signPlus && (first.pattern == "" || first.pattern == "*" || first.pattern == "**"):
					s.matchAll = true
				case first.sign == signMinus && (first.pattern == "" || first.pattern == "*" || first.pattern == "**"):
					s.matchNone = true
				}
			}
		}
	}
	s.activeNegate = s.macroNegate != s.userNegate
	return s.isActive && !s.matchNone
}

// Match reports whether text passes s's rules, honoring path separator
// sep for glob evaluation. A nil or never-configured Set matches
// everything (mirrors MatchFilePattern falling back to
// GetDefaultFilePattern).
func (s *Set) Match(text string, sep byte) bool {
	if s == nil {
		return true
	}
	if s.isDirty {
		s.Setup()
	}
	if s.matchAll {
		return !s.activeNegate
	}
	if s.matchNone {
		return s.activeNegate
	}

	defaultResult := !s.activeNegate
	skip := 0
	for _, r := range s.rules {
		// skip is checked, then always decremented, mirroring the
		// original's `skip-- <= 0` — a rule still "consumes" a pending
		// skip count even when its own match test is suppressed.
		cond := skip <= 0
		skip--

		if r.hasSkip {
			if cond {
				matched := Glob(r.pattern, text, sep)
				switch r.sign {
				case signMinus:
					if !matched {
						skip = r.skipCount
					}
				case signPlus:
					if matched {
						skip = r.skipCount
					}
				}
			}
			continue
		}

		switch r.sign {
		case signMinus:
			if cond && Glob(r.pattern, text, sep) {
				return s.activeNegate
			}
			// Unconditional, matching the original: a skipped rule's
			// sign still shifts the tail default, even though its own
			// match test was suppressed.
			defaultResult = !s.activeNegate
		case signPlus:
			if cond && Glob(r.pattern, text, sep) {
				return !s.activeNegate
			}
			defaultResult = s.activeNegate
		}
	}
	return defaultResult
}

// Registry holds all patCount rulesets, indexed by Kind — the Go
// equivalent of match-pattern.c's global `file_pattern[PAT__N]` array.
type Registry struct {
	sets [patCount]*Set
}

// NewRegistry returns a Registry with every slot initialized to an
// empty Set.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.sets {
		r.sets[i] = NewSet()
	}
	return r
}

// Set returns the ruleset for k.
func (r *Registry) Set(k Kind) *Set { return r.sets[k] }

// EffectiveSet returns the ruleset for k, falling back to PatDefault
// when k's own ruleset has no rules — mirrors GetDFilePattern.
func (r *Registry) EffectiveSet(k Kind) *Set {
	s := r.sets[k]
	if len(s.rules) == 0 {
		return r.sets[PatDefault]
	}
	return s
}

// MoveParam transfers the PAT_PARAM ruleset into dest and resets
// PAT_PARAM to empty, mirroring MoveParamPattern.
func (r *Registry) MoveParam(dest *Set) {
	src := r.sets[PatParam]
	src.Setup()
	*dest = *src
	r.sets[PatParam] = NewSet()
}
