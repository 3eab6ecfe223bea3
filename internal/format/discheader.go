package format

import (
	"encoding/binary"
	"fmt"

	"github.com/wiimm/witcore/internal/utils/security"
)

// Magic words recognizing GameCube and Wii discs, stored big-endian at
// fixed offsets inside the disc header.
const (
	MagicWii       uint32 = 0x5D1C9EA3
	MagicGameCube  uint32 = 0xC2339F3D
	offWiiMagic           = 0x18
	offGameCubeMagic      = 0x1C
)

// DiscHeader is the first 0x100 bytes of every disc image.
type DiscHeader struct {
	ID6           [6]byte // disc id: game code(4) + maker code(2)
	DiscNumber    uint8
	DiscVersion   uint8
	AudioStreamed uint8
	StreamBufSize uint8
	_             [14]byte // unused/reserved
	WiiMagic      uint32
	GameCubeMagic uint32
	Title         [0x40]byte
	// remaining bytes up to 0x100 (disable-hash-verify flags, etc.) are
	// preserved opaquely for byte-exact round-trip.
	Rest [0x100 - 0x60]byte
}

// Attrib reports disc-kind flags recognized via magic words. The
// DVD9/multi-boot secondary magic's interaction with the region block
// is intentionally left uncross-validated; see DESIGN.md.
type Attrib struct {
	MultiBoot bool
	DVD9      bool
}

// DecodeDiscHeader parses the first SizeDiscHeader bytes of a disc image.
func DecodeDiscHeader(raw []byte) (*DiscHeader, error) {
	if len(raw) != SizeDiscHeader {
		return nil, fmt.Errorf("disc header: expected %d bytes, got %d", SizeDiscHeader, len(raw))
	}

	h := &DiscHeader{}
	copy(h.ID6[:], raw[0:6])
	h.DiscNumber = raw[6]
	h.DiscVersion = raw[7]
	h.AudioStreamed = raw[8]
	h.StreamBufSize = raw[9]
	h.WiiMagic = binary.BigEndian.Uint32(raw[offWiiMagic:])
	h.GameCubeMagic = binary.BigEndian.Uint32(raw[offGameCubeMagic:])
	copy(h.Title[:], raw[0x20:0x60])
	copy(h.Rest[:], raw[0x60:0x100])

	id6 := string(h.ID6[:])
	if h.ID6[0] == 0 {
		// A zero first byte marks a multi-boot image (see Attrib).
		id6 = id6[1:]
	}
	if err := security.ValidateString("disc-id6", id6, security.DiscFieldLimits()); err != nil {
		return nil, fmt.Errorf("disc header: %w", err)
	}
	if err := security.ValidateString("disc-title", titleString(h.Title[:]), security.DiscFieldLimits()); err != nil {
		return nil, fmt.Errorf("disc header: %w", err)
	}

	return h, nil
}

// EncodeDiscHeader serializes h back into SizeDiscHeader bytes.
func EncodeDiscHeader(h *DiscHeader) []byte {
	raw := make([]byte, SizeDiscHeader)
	copy(raw[0:6], h.ID6[:])
	raw[6] = h.DiscNumber
	raw[7] = h.DiscVersion
	raw[8] = h.AudioStreamed
	raw[9] = h.StreamBufSize
	binary.BigEndian.PutUint32(raw[offWiiMagic:], h.WiiMagic)
	binary.BigEndian.PutUint32(raw[offGameCubeMagic:], h.GameCubeMagic)
	copy(raw[0x20:0x60], h.Title[:])
	copy(raw[0x60:0x100], h.Rest[:])
	return raw
}

// IsWii reports whether h carries the Wii magic word.
func (h *DiscHeader) IsWii() bool { return h.WiiMagic == MagicWii }

// IsGameCube reports whether h carries the GameCube magic word.
func (h *DiscHeader) IsGameCube() bool { return h.GameCubeMagic == MagicGameCube }

// Attrib recognizes multi-boot/DVD9 flags from the id6 bytes alone:
// MultiBoot is set when id6[0] is zero, and DVD9 when id6[4] (the
// secondary magic at offset 4 of the id6 area) is 'D' or 'X'. Observed
// byte behavior is preserved rather than inferring intent.
func (h *DiscHeader) Attrib() Attrib {
	return Attrib{
		MultiBoot: h.ID6[0] == 0,
		DVD9:      h.ID6[4] == 'D' || h.ID6[4] == 'X',
	}
}

func titleString(b []byte) string {
	n := len(b)
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	return string(b[:n])
}
