// Package crypto implements Wii/GC partition cryptography: AES-128-CBC
// title-key unwrapping, per-cluster payload encryption with its
// hash-area-derived IV, and the three-level SHA-1 hash tree that feeds
// a partition's TMD content hash.
//
// Every primitive here is built on the standard library's crypto/aes,
// crypto/cipher, and crypto/sha1 packages: hand-rolling AES-CBC or
// SHA-1 would add an unnecessary external trust boundary around key
// material for no benefit over what the standard library provides.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/wiimm/witcore/internal/format"
)

// CommonKeyIndex selects which of the well-known Wii common keys
// unwraps a ticket's title key.
type CommonKeyIndex byte

const (
	CommonKeyNormal   CommonKeyIndex = 0
	CommonKeyKorean   CommonKeyIndex = 1
	CommonKeyVWii     CommonKeyIndex = 2
)

// KeyRing holds the common keys needed to unwrap title keys. Keys are
// supplied by the caller (loaded from internal/config's keys.yaml
// manifest); this package never embeds or hardcodes key material.
type KeyRing struct {
	Keys map[CommonKeyIndex][16]byte
}

// CommonKey looks up the key for idx, returning an error if it has not
// been loaded into the ring.
func (r *KeyRing) CommonKey(idx CommonKeyIndex) ([16]byte, error) {
	k, ok := r.Keys[idx]
	if !ok {
		return [16]byte{}, fmt.Errorf("crypto: common key %d not available", idx)
	}
	return k, nil
}

// UnwrapTitleKey decrypts a ticket's wrapped title key: AES-128-CBC
// decrypt with the selected common key, IV = the ticket's title ID
// followed by 8 zero bytes.
func (r *KeyRing) UnwrapTitleKey(t *format.Ticket) ([16]byte, error) {
	var titleKey [16]byte
	common, err := r.CommonKey(CommonKeyIndex(t.CommonKeyIndex))
	if err != nil {
		return titleKey, err
	}
	block, err := aes.NewCipher(common[:])
	if err != nil {
		return titleKey, fmt.Errorf("crypto: building common-key cipher: %w", err)
	}
	var iv [16]byte
	copy(iv[:8], t.TitleID[:])

	out := make([]byte, 16)
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(out, t.TitleKey[:])
	copy(titleKey[:], out)
	return titleKey, nil
}

// WrapTitleKey is the inverse of UnwrapTitleKey, used when building a
// fresh ticket for CREATE.
func (r *KeyRing) WrapTitleKey(commonIdx CommonKeyIndex, titleID [8]byte, titleKey [16]byte) ([16]byte, error) {
	var wrapped [16]byte
	common, err := r.CommonKey(commonIdx)
	if err != nil {
		return wrapped, err
	}
	block, err := aes.NewCipher(common[:])
	if err != nil {
		return wrapped, fmt.Errorf("crypto: building common-key cipher: %w", err)
	}
	var iv [16]byte
	copy(iv[:8], titleID[:])

	out := make([]byte, 16)
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, titleKey[:])
	copy(wrapped[:], out)
	return wrapped, nil
}
