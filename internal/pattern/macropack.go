package pattern

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wiimm/witcore/internal/werr"
)

// macroPackSchema validates an external macro-pack file: an object whose
// one member, "macros", maps each new macro name to the ';'-separated
// rule string it expands to, the same right-hand-side syntax Set.Add already accepts for the
// built-in macroTable entries.
const macroPackSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["macros"],
	"additionalProperties": false,
	"properties": {
		"macros": {
			"type": "object",
			"additionalProperties": { "type": "string", "minLength": 1 }
		}
	}
}`

// extraMacros holds macro definitions loaded from an external pack,
// consulted by expandMacro after the built-in macroTable.
var extraMacros = map[string]string{}

// LoadMacroPack reads and JSON-schema-validates an external macro-pack
// file at path, merging its macros into the process-wide macro set so
// that later Set.Add/":name" references can resolve them alongside the
// built-in ones. Validation happens before any macro name is accepted,
// so a malformed pack fails fast rather than partially registering.
func LoadMacroPack(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return werr.Wrap(werr.KindIO, err, "reading macro pack")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("macropack.json", strings.NewReader(macroPackSchema)); err != nil {
		return werr.Wrap(werr.KindFatal, err, "compiling macro pack schema")
	}
	schema, err := compiler.Compile("macropack.json")
	if err != nil {
		return werr.Wrap(werr.KindFatal, err, "compiling macro pack schema")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return werr.Wrap(werr.KindSyntax, err, "parsing macro pack")
	}
	if err := schema.Validate(doc); err != nil {
		return werr.Wrap(werr.KindSyntax, err, "validating macro pack")
	}

	var pack struct {
		Macros map[string]string `json:"macros"`
	}
	if err := json.Unmarshal(raw, &pack); err != nil {
		return werr.Wrap(werr.KindSyntax, err, "parsing macro pack")
	}
	for name, expand := range pack.Macros {
		if _, builtin := lookupBuiltinMacro(name); builtin {
			return werr.Newf(werr.KindSyntax, "macro pack: %q shadows a built-in macro", name)
		}
		extraMacros[name] = expand
	}
	return nil
}

func lookupBuiltinMacro(name string) (string, bool) {
	for _, m := range macroTable {
		if m.name == name {
			return m.expand, true
		}
	}
	return "", false
}

// ResetMacroPack clears any macros loaded via LoadMacroPack, exposed
// for tests that need a clean macro namespace between cases.
func ResetMacroPack() {
	extraMacros = map[string]string{}
}
