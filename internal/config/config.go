// Package config reads this module's process-wide defaults: the WIT_OPT
// environment variable and an optional keys.yaml common-key manifest
// found alongside it. internal/logger already reads WIT_OPT for its own
// "debug"/"quiet" tokens; this package is the rest of that same
// variable's contract (color, line width, titles-database path,
// common-key directory) plus the YAML manifest the common-key directory
// may hold.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wiimm/witcore/internal/crypto"
)

// ColorMode mirrors the real tool's --color=on/off/auto switch.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorOn
	ColorOff
)

// defaultLineWidth matches the real tool's fallback terminal width when
// none is configured and stdout isn't a TTY worth probing.
const defaultLineWidth = 80

// Defaults holds the values WIT_OPT may carry.
type Defaults struct {
	Color        ColorMode
	LineWidth    int
	TitlesDBPath string
	CommonKeyDir string
}

// Load parses WIT_OPT once into a Defaults struct. WIT_OPT is a
// whitespace-separated token list; recognized tokens are "color=MODE",
// "width=N", "titles=PATH", and "keys=PATH". Unrecognized tokens
// (including the "debug"/"quiet"/"verbose" tokens internal/logger reads)
// are ignored here: each consumer reads only the tokens it cares about.
func Load() Defaults {
	return parse(os.Getenv("WIT_OPT"))
}

func parse(opt string) Defaults {
	d := Defaults{Color: ColorAuto, LineWidth: defaultLineWidth}
	for _, tok := range strings.Fields(opt) {
		key, val, hasVal := strings.Cut(tok, "=")
		key = strings.ToLower(key)
		switch key {
		case "color":
			if !hasVal {
				continue
			}
			switch strings.ToLower(val) {
			case "on":
				d.Color = ColorOn
			case "off":
				d.Color = ColorOff
			default:
				d.Color = ColorAuto
			}
		case "width":
			if n, err := strconv.Atoi(val); hasVal && err == nil && n > 0 {
				d.LineWidth = n
			}
		case "titles":
			if hasVal {
				d.TitlesDBPath = val
			}
		case "keys":
			if hasVal {
				d.CommonKeyDir = val
			}
		}
	}
	return d
}

// LoadKeyRing loads d.CommonKeyDir's keys.yaml manifest into a
// crypto.KeyRing, if a common-key directory was configured. Returns a
// non-nil empty ring (no error) when no directory was configured or the
// manifest file is absent, so callers that never need decryption (a
// plain copy of an already-scrubbed disc, for instance) don't have to
// special-case a missing manifest.
func (d Defaults) LoadKeyRing() (*crypto.KeyRing, error) {
	ring := &crypto.KeyRing{Keys: map[crypto.CommonKeyIndex][16]byte{}}
	if d.CommonKeyDir == "" {
		return ring, nil
	}
	path := filepath.Join(d.CommonKeyDir, "keys.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ring, nil
	}
	return LoadKeyRingFile(path)
}
