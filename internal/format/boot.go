package format

import (
	"encoding/binary"
	"fmt"
)

// BootBlock is the 0x440-byte block following the disc header: the
// debug monitor/apploader pointers and the disc's boot configuration.
type BootBlock struct {
	DebugMonitorOffset uint32
	DebugMonitorAddr   uint32
	Reserved           [0x18]byte
	MainExecOffset     uint32 // main.dol offset (off4 not applied here; raw byte offset)
	FSTOffset          uint32 // off4 units, like the partition header's offset fields
	FSTSize            uint32 // off4 units (the current, in-use FST size)
	FSTMaxSize         uint32 // off4 units (largest FST this disc has ever carried, for in-place rebuilds)
	Rest               [0x440 - 0x20 - 4*4]byte
}

// DecodeBootBlock parses SizeBootBlock bytes.
func DecodeBootBlock(raw []byte) (*BootBlock, error) {
	if len(raw) != SizeBootBlock {
		return nil, fmt.Errorf("boot block: expected %d bytes, got %d", SizeBootBlock, len(raw))
	}
	b := &BootBlock{}
	b.DebugMonitorOffset = binary.BigEndian.Uint32(raw[0:4])
	b.DebugMonitorAddr = binary.BigEndian.Uint32(raw[4:8])
	copy(b.Reserved[:], raw[8:0x20])
	b.MainExecOffset = binary.BigEndian.Uint32(raw[0x20:0x24])
	b.FSTOffset = binary.BigEndian.Uint32(raw[0x24:0x28])
	b.FSTSize = binary.BigEndian.Uint32(raw[0x28:0x2C])
	b.FSTMaxSize = binary.BigEndian.Uint32(raw[0x2C:0x30])
	copy(b.Rest[:], raw[0x30:])
	return b, nil
}

// EncodeBootBlock serializes b back into SizeBootBlock bytes.
func EncodeBootBlock(b *BootBlock) []byte {
	raw := make([]byte, SizeBootBlock)
	binary.BigEndian.PutUint32(raw[0:4], b.DebugMonitorOffset)
	binary.BigEndian.PutUint32(raw[4:8], b.DebugMonitorAddr)
	copy(raw[8:0x20], b.Reserved[:])
	binary.BigEndian.PutUint32(raw[0x20:0x24], b.MainExecOffset)
	binary.BigEndian.PutUint32(raw[0x24:0x28], b.FSTOffset)
	binary.BigEndian.PutUint32(raw[0x28:0x2C], b.FSTSize)
	binary.BigEndian.PutUint32(raw[0x2C:0x30], b.FSTMaxSize)
	copy(raw[0x30:], b.Rest[:])
	return raw
}

// Region is the 0x20-byte region block. Byte 3 (RegionValue) is the
// canonical region code (PAL/NTSC-U/NTSC-J/etc.).
type Region struct {
	RegionValue uint32
	Reserved    [0x1C]byte
}

// DecodeRegion parses SizeRegion bytes.
func DecodeRegion(raw []byte) (*Region, error) {
	if len(raw) != SizeRegion {
		return nil, fmt.Errorf("region block: expected %d bytes, got %d", SizeRegion, len(raw))
	}
	r := &Region{}
	r.RegionValue = binary.BigEndian.Uint32(raw[0:4])
	copy(r.Reserved[:], raw[4:])
	return r, nil
}

// EncodeRegion serializes r back into SizeRegion bytes.
func EncodeRegion(r *Region) []byte {
	raw := make([]byte, SizeRegion)
	binary.BigEndian.PutUint32(raw[0:4], r.RegionValue)
	copy(raw[4:], r.Reserved[:])
	return raw
}
