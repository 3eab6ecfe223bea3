package format

import (
	"encoding/binary"
	"fmt"
)

// Ticket signature-region offsets: the fake-sign brute force iterates
// bytes [SigOff:end) of the ticket.
const (
	TicketSigOff     = 0x140
	ticketSigStart   = 0x04 // signature field starts right after sig type
	ticketSigLen     = 0x100
	ticketSigPadLen  = 0x3C
	ticketCommonKeyOff = 0x1F1
	ticketTitleIDOff   = 0x1DC
	ticketTitleKeyOff  = 0x1BF
	ticketFakeSignOff  = 0x19C // 4-byte brute-force field inside the signed tail (dclib "unknown2" slot)
)

// Ticket is the fixed 0x2A4-byte ticket structure preceding a partition's
// header.
type Ticket struct {
	SigType   uint32
	Signature [ticketSigLen]byte
	SigPad    [ticketSigPadLen]byte
	Issuer    [0x40]byte
	ECDHData  [0x3C]byte
	Unknown1  byte
	TitleKey  [16]byte
	Unknown2  byte
	TitleID   [8]byte
	Unknown3  [0x06]byte
	CommonKeyIndex byte
	Unknown4  [0x30]byte
	FakeSign  [4]byte // fake-sign brute-force counter field
	Tail      [SizeTicket - 0x140 - 4 - 0x30 - 1 - 0x06 - 8 - 1 - 16 - 1 - 0x3C - 0x40]byte
}

// DecodeTicket parses SizeTicket bytes.
func DecodeTicket(raw []byte) (*Ticket, error) {
	if len(raw) != SizeTicket {
		return nil, fmt.Errorf("ticket: expected %d bytes, got %d", SizeTicket, len(raw))
	}
	t := &Ticket{}
	t.SigType = binary.BigEndian.Uint32(raw[0:4])
	copy(t.Signature[:], raw[4:4+ticketSigLen])
	copy(t.SigPad[:], raw[4+ticketSigLen:TicketSigOff])
	copy(t.Issuer[:], raw[TicketSigOff:TicketSigOff+0x40])
	copy(t.ECDHData[:], raw[TicketSigOff+0x40:TicketSigOff+0x40+0x3C])
	off := TicketSigOff + 0x40 + 0x3C
	t.Unknown1 = raw[off]
	off++
	copy(t.TitleKey[:], raw[off:off+16])
	off += 16
	t.Unknown2 = raw[off]
	off++
	copy(t.TitleID[:], raw[off:off+8])
	off += 8
	copy(t.Unknown3[:], raw[off:off+6])
	off += 6
	t.CommonKeyIndex = raw[off]
	off++
	copy(t.Unknown4[:], raw[off:off+0x30])
	off += 0x30
	copy(t.FakeSign[:], raw[off:off+4])
	off += 4
	copy(t.Tail[:], raw[off:])
	return t, nil
}

// EncodeTicket serializes t back into SizeTicket bytes.
func EncodeTicket(t *Ticket) []byte {
	raw := make([]byte, SizeTicket)
	binary.BigEndian.PutUint32(raw[0:4], t.SigType)
	copy(raw[4:4+ticketSigLen], t.Signature[:])
	copy(raw[4+ticketSigLen:TicketSigOff], t.SigPad[:])
	copy(raw[TicketSigOff:TicketSigOff+0x40], t.Issuer[:])
	copy(raw[TicketSigOff+0x40:TicketSigOff+0x40+0x3C], t.ECDHData[:])
	off := TicketSigOff + 0x40 + 0x3C
	raw[off] = t.Unknown1
	off++
	copy(raw[off:off+16], t.TitleKey[:])
	off += 16
	raw[off] = t.Unknown2
	off++
	copy(raw[off:off+8], t.TitleID[:])
	off += 8
	copy(raw[off:off+6], t.Unknown3[:])
	off += 6
	raw[off] = t.CommonKeyIndex
	off++
	copy(raw[off:off+0x30], t.Unknown4[:])
	off += 0x30
	copy(raw[off:off+4], t.FakeSign[:])
	off += 4
	copy(raw[off:], t.Tail[:])
	return raw
}

// SignedRegion returns the encoded ticket bytes from TicketSigOff to the
// end, the region whose SHA-1 the fake-sign brute force targets.
func (t *Ticket) SignedRegion() []byte {
	return EncodeTicket(t)[TicketSigOff:]
}

// ZeroSignature clears the signature, its padding, and the fake-sign
// field, as required before a fake-sign brute force begins.
func (t *Ticket) ZeroSignature() {
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
func (t *Ticket) SetFakeSign(v uint32) {
	binary.BigEndian.PutUint32(t.FakeSign[:], v)
}

// IsZeroSignature reports whether the signature field itself is all
// zero bytes, independent of SignedRegion's hash.
func (t *Ticket) IsZeroSignature() bool {
	for _, b := range t.Signature {
		if b != 0 {
			return false
		}
	}
	return true
}

// notEncryptedMarker flags a ticket/TMD pair belonging to a partition
// that was deliberately decrypted and never re-encrypted (a "scrubbed"
// partition): the signature region is zeroed exactly as for fake
// signing, but SigPad carries this literal string instead of zero
// bytes or a brute-forced hash, so a later CREATE pass can recognize
// and skip re-hashing it. Only SigPad is used here, not the 4-byte
// FakeSign field: the original field that held this marker alongside
// the signature padding is wider than the 4-byte brute-force counter
// this port models, so the marker is stored in SigPad alone.
const notEncryptedMarker = "*** partition is not encrypted ***"

// MarkNotEncrypted clears the signature as ZeroSignature does, then
// stamps SigPad with the not-encrypted marker instead of leaving it
// zero.
func (t *Ticket) MarkNotEncrypted() {
	t.ZeroSignature()
	copy(t.SigPad[:], notEncryptedMarker)
}

// IsMarkedNotEncrypted reports whether SigPad carries the
// not-encrypted marker stamped by MarkNotEncrypted.
func (t *Ticket) IsMarkedNotEncrypted() bool {
	return string(t.SigPad[:len(notEncryptedMarker)]) == notEncryptedMarker
}
