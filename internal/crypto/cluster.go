package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/wiimm/witcore/internal/format"
)

// DecryptCluster decrypts one SizeCluster-byte encrypted cluster with
// titleKey, returning the decoded hash area and the decrypted payload.
//
// The hash area decrypts with a constant, all-zero IV. The payload's IV
// is then taken from the *encrypted* (not decrypted) hash area at
// DataIVOffset:DataIVOffset+16 — a quirk of the original format rather
// than a deliberate design choice here, preserved because partitions
// produced by other tools depend on it.
func DecryptCluster(enc []byte, titleKey [16]byte) (*format.ClusterHashArea, []byte, error) {
	if len(enc) != format.SizeCluster {
		return nil, nil, fmt.Errorf("crypto: cluster must be %d bytes, got %d", format.SizeCluster, len(enc))
	}
	block, err := aes.NewCipher(titleKey[:])
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: building title-key cipher: %w", err)
	}

	hashArea := make([]byte, format.SizeClusterHashArea)
	var zeroIV [16]byte
	cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(hashArea, enc[:format.SizeClusterHashArea])

	dataIV := make([]byte, 16)
	copy(dataIV, enc[format.DataIVOffset:format.DataIVOffset+16])

	payload := make([]byte, format.SizeClusterPayload)
	cipher.NewCBCDecrypter(block, dataIV).CryptBlocks(payload, enc[format.SizeClusterHashArea:])

	area, err := format.DecodeClusterHashArea(hashArea)
	if err != nil {
		return nil, nil, err
	}
	return area, payload, nil
}

// EncryptCluster is the inverse of DecryptCluster: it encrypts area
// with a zero IV to obtain the ciphertext hash area, derives the
// payload's IV from that ciphertext (the same quirk DecryptCluster
// unwinds), then encrypts payload.
func EncryptCluster(area *format.ClusterHashArea, payload []byte, titleKey [16]byte) ([]byte, error) {
	if len(payload) != format.SizeClusterPayload {
		return nil, fmt.Errorf("crypto: payload must be %d bytes, got %d", format.SizeClusterPayload, len(payload))
	}
	block, err := aes.NewCipher(titleKey[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: building title-key cipher: %w", err)
	}

	hashPlain := format.EncodeClusterHashArea(area)
	hashCipher := make([]byte, format.SizeClusterHashArea)
	var zeroIV [16]byte
	cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(hashCipher, hashPlain)

	dataIV := make([]byte, 16)
	copy(dataIV, hashCipher[format.DataIVOffset:format.DataIVOffset+16])

	dataCipher := make([]byte, format.SizeClusterPayload)
	cipher.NewCBCEncrypter(block, dataIV).CryptBlocks(dataCipher, payload)

	out := make([]byte, format.SizeCluster)
	copy(out, hashCipher)
	copy(out[format.SizeClusterHashArea:], dataCipher)
	return out, nil
}
