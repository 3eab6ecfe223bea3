package format

import (
	"encoding/binary"
	"fmt"
)

// TMDSigOff is the byte offset where the TMD's signed region begins,
// immediately after the signature and its padding. The fake-sign field
// lies inside the signed region.
const TMDSigOff = 0x140

// TMDContent describes one content entry in a TMD's content array.
type TMDContent struct {
	ContentID uint32
	Index     uint16
	Type      uint16
	Size      uint64
	Hash      [SizeSHA1]byte
}

// DecodeTMDContent parses SizeTMDContent bytes.
func DecodeTMDContent(raw []byte) (TMDContent, error) {
	var c TMDContent
	if len(raw) != SizeTMDContent {
		return c, fmt.Errorf("tmd content: expected %d bytes, got %d", SizeTMDContent, len(raw))
	}
	c.ContentID = binary.BigEndian.Uint32(raw[0:4])
	c.Index = binary.BigEndian.Uint16(raw[4:6])
	c.Type = binary.BigEndian.Uint16(raw[6:8])
	c.Size = binary.BigEndian.Uint64(raw[8:16])
	copy(c.Hash[:], raw[16:16+SizeSHA1])
	return c, nil
}

// EncodeTMDContent serializes c back into SizeTMDContent bytes.
func EncodeTMDContent(c TMDContent) []byte {
	raw := make([]byte, SizeTMDContent)
	binary.BigEndian.PutUint32(raw[0:4], c.ContentID)
	binary.BigEndian.PutUint16(raw[4:6], c.Index)
	binary.BigEndian.PutUint16(raw[6:8], c.Type)
	binary.BigEndian.PutUint64(raw[8:16], c.Size)
	copy(raw[16:16+SizeSHA1], c.Hash[:])
	return raw
}

// TMD is the variable-length title metadata structure: a SizeTMDBase
// fixed header/signature area followed by N SizeTMDContent entries.
type TMD struct {
	SigType   uint32
	Signature [0x100]byte
	SigPad    [0x3C]byte
	Issuer    [0x40]byte
	Version   byte
	CACrlVer  byte
	SignerCrlVer byte
	Reserved1 byte
	SysVersion uint64
	TitleID    [8]byte
	TitleType  uint32
	GroupID    uint16
	Reserved2  [0x3A]byte
	FakeSign     [4]byte // fake-sign brute-force counter field
	AccessRights uint32
	TitleVersion uint16
	NumContents  uint16
	BootIndex    uint16
	Reserved3    [0x02]byte
	Contents     []TMDContent
}

// DecodeTMD parses raw, which must be at least SizeTMDBase bytes and
// exactly SizeTMDBase+N*SizeTMDContent for some N (enforced here).
func DecodeTMD(raw []byte) (*TMD, error) {
	if len(raw) < SizeTMDBase {
		return nil, fmt.Errorf("tmd: shorter than base size %d", SizeTMDBase)
	}
	rem := len(raw) - SizeTMDBase
	if rem%SizeTMDContent != 0 {
		return nil, fmt.Errorf("tmd: content area size %d is not a multiple of %d", rem, SizeTMDContent)
	}
	n := rem / SizeTMDContent

	t := &TMD{}
	t.SigType = binary.BigEndian.Uint32(raw[0:4])
	copy(t.Signature[:], raw[4:4+0x100])
	copy(t.SigPad[:], raw[4+0x100:TMDSigOff])
	off := TMDSigOff
	copy(t.Issuer[:], raw[off:off+0x40])
	off += 0x40
	t.Version = raw[off]
	off++
	t.CACrlVer = raw[off]
	off++
	t.SignerCrlVer = raw[off]
	off++
	t.Reserved1 = raw[off]
	off++
	t.SysVersion = binary.BigEndian.Uint64(raw[off : off+8])
	off += 8
	copy(t.TitleID[:], raw[off:off+8])
	off += 8
	t.TitleType = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	t.GroupID = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	copy(t.Reserved2[:], raw[off:off+0x3A])
	off += 0x3A
	copy(t.FakeSign[:], raw[off:off+4])
	off += 4
	t.AccessRights = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	t.TitleVersion = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	t.NumContents = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	t.BootIndex = binary.BigEndian.Uint16(raw[off : off+2])
	off += 2
	copy(t.Reserved3[:], raw[off:off+2])
	off += 2

	if off != SizeTMDBase {
		return nil, fmt.Errorf("tmd: internal layout mismatch, off=%d base=%d", off, SizeTMDBase)
	}
	if int(t.NumContents) != n {
		return nil, fmt.Errorf("tmd: header says %d contents, payload carries %d", t.NumContents, n)
	}

	t.Contents = make([]TMDContent, n)
	for i := 0; i < n; i++ {
		c, err := DecodeTMDContent(raw[SizeTMDBase+i*SizeTMDContent : SizeTMDBase+(i+1)*SizeTMDContent])
		if err != nil {
			return nil, err
		}
		t.Contents[i] = c
	}
	return t, nil
}

// EncodeTMD serializes t back into SizeTMDBase+N*SizeTMDContent bytes.
func EncodeTMD(t *TMD) []byte {
	raw := make([]byte, SizeTMDBase+len(t.Contents)*SizeTMDContent)
	binary.BigEndian.PutUint32(raw[0:4], t.SigType)
	copy(raw[4:4+0x100], t.Signature[:])
	copy(raw[4+0x100:TMDSigOff], t.SigPad[:])
	off := TMDSigOff
	copy(raw[off:off+0x40], t.Issuer[:])
	off += 0x40
	raw[off] = t.Version
	off++
	raw[off] = t.CACrlVer
	off++
	raw[off] = t.SignerCrlVer
	off++
	raw[off] = t.Reserved1
	off++
	binary.BigEndian.PutUint64(raw[off:off+8], t.SysVersion)
	off += 8
	copy(raw[off:off+8], t.TitleID[:])
	off += 8
	binary.BigEndian.PutUint32(raw[off:off+4], t.TitleType)
	off += 4
	binary.BigEndian.PutUint16(raw[off:off+2], t.GroupID)
	off += 2
	copy(raw[off:off+0x3A], t.Reserved2[:])
	off += 0x3A
	copy(raw[off:off+4], t.FakeSign[:])
	off += 4
	binary.BigEndian.PutUint32(raw[off:off+4], t.AccessRights)
	off += 4
	binary.BigEndian.PutUint16(raw[off:off+2], t.TitleVersion)
	off += 2
	binary.BigEndian.PutUint16(raw[off:off+2], uint16(len(t.Contents)))
	off += 2
	binary.BigEndian.PutUint16(raw[off:off+2], t.BootIndex)
	off += 2
	copy(raw[off:off+2], t.Reserved3[:])
	off += 2

	for i, c := range t.Contents {
		copy(raw[SizeTMDBase+i*SizeTMDContent:SizeTMDBase+(i+1)*SizeTMDContent], EncodeTMDContent(c))
	}
	return raw
}

// SignedRegion returns the encoded TMD bytes from TMDSigOff to the end.
func (t *TMD) SignedRegion() []byte {
	return EncodeTMD(t)[TMDSigOff:]
}

// ZeroSignature clears the signature, its padding, and the fake-sign
// field.
func (t *TMD) ZeroSignature() {
	for i := range t.Signature {
		t.Signature[i] = 0
	}
	for i := range t.SigPad {
		t.SigPad[i] = 0
	}
	for i := range t.FakeSign {
		t.FakeSign[i] = 0
	}
}

// SetFakeSign stores v, big-endian, into the fake-sign brute-force
// field.
func (t *TMD) SetFakeSign(v uint32) {
	binary.BigEndian.PutUint32(t.FakeSign[:], v)
}

// IsZeroSignature reports whether the signature field itself is all
// zero bytes, independent of SignedRegion's hash.
func (t *TMD) IsZeroSignature() bool {
	for _, b := range t.Signature {
		if b != 0 {
			return false
		}
	}
	return true
}

// MarkNotEncrypted is the TMD half of Ticket.MarkNotEncrypted: it
// flags a scrubbed partition's TMD the same way, so a later CREATE
// pass can tell the two apart from an ordinary fake-signed pair.
func (t *TMD) MarkNotEncrypted() {
	t.ZeroSignature()
	copy(t.SigPad[:], notEncryptedMarker)
}

// IsMarkedNotEncrypted reports whether SigPad carries the
// not-encrypted marker.
func (t *TMD) IsMarkedNotEncrypted() bool {
	return string(t.SigPad[:len(notEncryptedMarker)]) == notEncryptedMarker
}
