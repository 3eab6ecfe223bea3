package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wiimm/witcore/internal/crypto"
)

// rawKeyManifest is the on-disk shape of keys.yaml: a common-key slot
// name mapped to its 16-byte key as a hex string, the same
// "unmarshal into a small raw struct, then translate" split
// internal/ai/template.ParseTemplate uses for its own YAML front matter.
type rawKeyManifest struct {
	CommonKeys map[string]string `yaml:"common_keys"`
}

var commonKeyNames = map[string]crypto.CommonKeyIndex{
	"normal": crypto.CommonKeyNormal,
	"korean": crypto.CommonKeyKorean,
	"vwii":   crypto.CommonKeyVWii,
}

// LoadKeyRingFile parses a keys.yaml manifest at path into a
// crypto.KeyRing. Unknown slot names are rejected rather than silently
// ignored, since a typo'd slot name would otherwise look like a missing
// key at decrypt time with no hint why.
func LoadKeyRingFile(path string) (*crypto.KeyRing, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading key manifest %s: %w", path, err)
	}
	var raw rawKeyManifest
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing key manifest %s: %w", path, err)
	}

	ring := &crypto.KeyRing{Keys: map[crypto.CommonKeyIndex][16]byte{}}
	for name, hexKey := range raw.CommonKeys {
		idx, ok := commonKeyNames[name]
		if !ok {
			return nil, fmt.Errorf("config: key manifest %s: unknown common-key slot %q", path, name)
		}
		decoded, err := hex.DecodeString(hexKey)
		if err != nil || len(decoded) != 16 {
			return nil, fmt.Errorf("config: key manifest %s: slot %q must be 32 hex digits (16 bytes)", path, name)
		}
		var key [16]byte
		copy(key[:], decoded)
		ring.Keys[idx] = key
	}
	return ring, nil
}
