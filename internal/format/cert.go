package format

import (
	"encoding/binary"
	"fmt"
)

// Certificate signature/key type tags found in a cert-chain entry.
// Values follow the Wii's signature-and-key type tag encoding: the low
// byte selects the key algorithm, the signature type occupies the
// upper bits.
const (
	SigTypeRSA4096SHA1 uint32 = 0x00010000
	SigTypeRSA2048SHA1 uint32 = 0x00010001
	SigTypeECCSHA1     uint32 = 0x00010002

	KeyTypeRSA4096 uint32 = 0
	KeyTypeRSA2048 uint32 = 1
	KeyTypeECC     uint32 = 2
)

func sigSizeForType(sigType uint32) (sigLen, padLen int, err error) {
	switch sigType {
	case SigTypeRSA4096SHA1:
		return 0x200, 0x3C, nil
	case SigTypeRSA2048SHA1:
		return 0x100, 0x3C, nil
	case SigTypeECCSHA1:
		return 0x3C, 0x40, nil
	default:
		return 0, 0, fmt.Errorf("cert: unknown signature type %#x", sigType)
	}
}

func keySizeForType(keyType uint32) (int, error) {
	switch keyType {
	case KeyTypeRSA4096:
		return 0x200 + 4 + 0x34, nil // modulus + exponent + padding, per the standard cert key blob
	case KeyTypeRSA2048:
		return 0x100 + 4 + 0x34, nil
	case KeyTypeECC:
		return 0x3C + 0x3C, nil
	default:
		return 0, fmt.Errorf("cert: unknown key type %#x", keyType)
	}
}

// Cert is one entry in a certificate chain: a signature over an issuer
// name + key-type + subject name + public key blob.
type Cert struct {
	SigType   uint32
	Signature []byte
	SigPad    []byte
	Issuer    [0x40]byte
	KeyType   uint32
	Subject   [0x40]byte
	PublicKey []byte
	Tail      []byte // key-type-specific trailer (exponent/padding already folded into PublicKey sizing upstream callers may ignore this)

	EncodedSize int // total bytes this cert occupied, for chain-walking
}

// ParseCertChain walks a concatenated certificate chain (as stored
// after a partition's TMD) and returns each entry in order. Unlike
// fixed-size structures elsewhere in this package, a
// cert's size depends on its own signature and key type fields, so the
// chain must be parsed sequentially.
func ParseCertChain(raw []byte) ([]Cert, error) {
	var certs []Cert
	off := 0
	for off < len(raw) {
		c, size, err := parseOneCert(raw[off:])
		if err != nil {
			return nil, fmt.Errorf("cert chain: entry %d at offset %#x: %w", len(certs), off, err)
		}
		c.EncodedSize = size
		certs = append(certs, c)
		off += size
	}
	return certs, nil
}

func parseOneCert(raw []byte) (Cert, int, error) {
	var c Cert
	if len(raw) < 4 {
		return c, 0, fmt.Errorf("truncated before signature type")
	}
	c.SigType = binary.BigEndian.Uint32(raw[0:4])
	sigLen, padLen, err := sigSizeForType(c.SigType)
	if err != nil {
		return c, 0, err
	}
	off := 4
	if len(raw) < off+sigLen+padLen {
		return c, 0, fmt.Errorf("truncated signature")
	}
	c.Signature = append([]byte(nil), raw[off:off+sigLen]...)
	off += sigLen
	c.SigPad = append([]byte(nil), raw[off:off+padLen]...)
	off += padLen

	if len(raw) < off+0x40+4+0x40 {
		return c, 0, fmt.Errorf("truncated issuer/key-type/subject")
	}
	copy(c.Issuer[:], raw[off:off+0x40])
	off += 0x40
	c.KeyType = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	copy(c.Subject[:], raw[off:off+0x40])
	off += 0x40

	keyLen, err := keySizeForType(c.KeyType)
	if err != nil {
		return c, 0, err
	}
	if len(raw) < off+keyLen {
		return c, 0, fmt.Errorf("truncated public key")
	}
	c.PublicKey = append([]byte(nil), raw[off:off+keyLen]...)
	off += keyLen

	return c, off, nil
}

// EncodeCertChain serializes certs back into a concatenated byte
// stream. PublicKey/Signature/SigPad must already be the correct
// length for their respective type fields (as produced by
// ParseCertChain or constructed consistently).
func EncodeCertChain(certs []Cert) []byte {
	var out []byte
	for _, c := range certs {
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, c.SigType)
		raw = append(raw, c.Signature...)
		raw = append(raw, c.SigPad...)
		raw = append(raw, c.Issuer[:]...)
		keyType := make([]byte, 4)
		binary.BigEndian.PutUint32(keyType, c.KeyType)
		raw = append(raw, keyType...)
		raw = append(raw, c.Subject[:]...)
		raw = append(raw, c.PublicKey...)
		out = append(out, raw...)
	}
	return out
}

// SubjectName returns c's subject field as a NUL-terminated string,
// e.g. "CA00000001" or "XS00000003".
func (c Cert) SubjectName() string { return titleString(c.Subject[:]) }

// IssuerName returns c's issuer field as a NUL-terminated string.
func (c Cert) IssuerName() string { return titleString(c.Issuer[:]) }

// KeyTypeName renders c's key type as the short name the CERT command
// reports, per SUPPLEMENTED FEATURES item 5.
func (c Cert) KeyTypeName() string {
	switch c.KeyType {
	case KeyTypeRSA4096:
		return "RSA4096"
	case KeyTypeRSA2048:
		return "RSA2048"
	case KeyTypeECC:
		return "ECC"
	default:
		return fmt.Sprintf("unknown(%#x)", c.KeyType)
	}
}

// IssuerChain returns the subject names of certs joined with '-' in
// chain order, e.g. "CA00000001-XS00000003". The first cert's issuer
// name is not included.
func IssuerChain(certs []Cert) string {
	s := ""
	for _, c := range certs {
		subj := titleString(c.Subject[:])
		if s == "" {
			s = subj
			continue
		}
		s += "-" + subj
	}
	return s
}
