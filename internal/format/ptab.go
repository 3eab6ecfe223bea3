package format

import (
	"encoding/binary"
	"fmt"
)

// PartitionType classifies a partition table entry.
type PartitionType uint32

const (
	PartTypeData    PartitionType = 0
	PartTypeUpdate  PartitionType = 1
	PartTypeChannel PartitionType = 2
)

// PTabOffset is the fixed disc offset of the four partition-table
// descriptors (count + off4 pairs).
const PTabOffset = 0x40000

// MaxPartitionTables is the number of partition-table slots a disc
// exposes.
const MaxPartitionTables = 4

// PTabDescriptor is one of the four (count, offset) pairs at PTabOffset.
type PTabDescriptor struct {
	Count  uint32
	Off4   uint32 // table offset in units of 4 bytes
}

// ByteOffset returns the descriptor's table offset in bytes.
func (d PTabDescriptor) ByteOffset() int64 { return int64(d.Off4) * 4 }

// PTabEntry is one (offset, type) tuple inside a partition table.
type PTabEntry struct {
	Off4 uint32
	Type PartitionType
}

// ByteOffset returns the entry's partition offset in bytes.
func (e PTabEntry) ByteOffset() int64 { return int64(e.Off4) * 4 }

// DecodePTabDescriptors parses the 4*8 = 32 bytes at PTabOffset.
func DecodePTabDescriptors(raw []byte) ([MaxPartitionTables]PTabDescriptor, error) {
	var out [MaxPartitionTables]PTabDescriptor
	if len(raw) != MaxPartitionTables*8 {
		return out, fmt.Errorf("partition table descriptors: expected %d bytes, got %d", MaxPartitionTables*8, len(raw))
	}
	for i := 0; i < MaxPartitionTables; i++ {
		off := i * 8
		out[i].Count = binary.BigEndian.Uint32(raw[off:])
		out[i].Off4 = binary.BigEndian.Uint32(raw[off+4:])
	}
	return out, nil
}

// EncodePTabDescriptors serializes the four descriptors.
func EncodePTabDescriptors(d [MaxPartitionTables]PTabDescriptor) []byte {
	raw := make([]byte, MaxPartitionTables*8)
	for i, desc := range d {
		off := i * 8
		binary.BigEndian.PutUint32(raw[off:], desc.Count)
		binary.BigEndian.PutUint32(raw[off+4:], desc.Off4)
	}
	return raw
}

// DecodePTabEntries parses count entries (8 bytes each) from raw.
func DecodePTabEntries(raw []byte, count int) ([]PTabEntry, error) {
	if len(raw) != count*8 {
		return nil, fmt.Errorf("partition table entries: expected %d bytes, got %d", count*8, len(raw))
	}
	out := make([]PTabEntry, count)
	for i := 0; i < count; i++ {
		off := i * 8
		out[i].Off4 = binary.BigEndian.Uint32(raw[off:])
		out[i].Type = PartitionType(binary.BigEndian.Uint32(raw[off+4:]))
	}
	return out, nil
}

// EncodePTabEntries serializes entries.
func EncodePTabEntries(entries []PTabEntry) []byte {
	raw := make([]byte, len(entries)*8)
	for i, e := range entries {
		off := i * 8
		binary.BigEndian.PutUint32(raw[off:], e.Off4)
		binary.BigEndian.PutUint32(raw[off+4:], uint32(e.Type))
	}
	return raw
}

// PartitionHeader is the fixed 0x2C0-byte header immediately following a
// partition's ticket, carrying byte offsets (in off4 units) and sizes for
// the TMD, certificate chain, H3 block, and encrypted data region.
type PartitionHeader struct {
	TMDSize    uint32
	TMDOff4    uint32
	CertSize   uint32
	CertOff4   uint32
	H3Off4     uint32 // H3 size is always SizeH3Block
	DataOff4   uint32
	DataSize4  uint32 // data size in units of 4 bytes
	Reserved   [SizePartitionHead - 7*4]byte
}

// DecodePartitionHeader parses SizePartitionHead bytes.
func DecodePartitionHeader(raw []byte) (*PartitionHeader, error) {
	if len(raw) != SizePartitionHead {
		return nil, fmt.Errorf("partition header: expected %d bytes, got %d", SizePartitionHead, len(raw))
	}
	p := &PartitionHeader{}
	p.TMDSize = binary.BigEndian.Uint32(raw[0:4])
	p.TMDOff4 = binary.BigEndian.Uint32(raw[4:8])
	p.CertSize = binary.BigEndian.Uint32(raw[8:12])
	p.CertOff4 = binary.BigEndian.Uint32(raw[12:16])
	p.H3Off4 = binary.BigEndian.Uint32(raw[16:20])
	p.DataOff4 = binary.BigEndian.Uint32(raw[20:24])
	p.DataSize4 = binary.BigEndian.Uint32(raw[24:28])
	copy(p.Reserved[:], raw[28:])
	return p, nil
}

// EncodePartitionHeader serializes p back into SizePartitionHead bytes.
func EncodePartitionHeader(p *PartitionHeader) []byte {
	raw := make([]byte, SizePartitionHead)
	binary.BigEndian.PutUint32(raw[0:4], p.TMDSize)
	binary.BigEndian.PutUint32(raw[4:8], p.TMDOff4)
	binary.BigEndian.PutUint32(raw[8:12], p.CertSize)
	binary.BigEndian.PutUint32(raw[12:16], p.CertOff4)
	binary.BigEndian.PutUint32(raw[16:20], p.H3Off4)
	binary.BigEndian.PutUint32(raw[20:24], p.DataOff4)
	binary.BigEndian.PutUint32(raw[24:28], p.DataSize4)
	copy(raw[28:], p.Reserved[:])
	return raw
}

// TMDOffset/CertOffset/H3Offset/DataOffset return byte offsets relative
// to the start of the partition (i.e. relative to the ticket).
func (p *PartitionHeader) TMDOffset() int64  { return int64(p.TMDOff4) * 4 }
func (p *PartitionHeader) CertOffset() int64 { return int64(p.CertOff4) * 4 }
func (p *PartitionHeader) H3Offset() int64   { return int64(p.H3Off4) * 4 }
func (p *PartitionHeader) DataOffset() int64 { return int64(p.DataOff4) * 4 }
func (p *PartitionHeader) DataSize() int64   { return int64(p.DataSize4) * 4 }

// ValidEnvelope reports whether the tmd, cert and h3 regions all lie
// within the SizePartitionEnvelope control area without overlapping one
// another, and whether the data region starts at or after the
// envelope's end. The ticket and partition header ranges are not
// checked. It does not check the data region's extent (that may
// legitimately exceed the envelope).
func (p *PartitionHeader) ValidEnvelope() error {
	ranges := []struct {
		name        string
		start, size int64
	}{
		{"tmd", p.TMDOffset(), int64(p.TMDSize)},
		{"cert", p.CertOffset(), int64(p.CertSize)},
		{"h3", p.H3Offset(), SizeH3Block},
	}
	for _, r := range ranges {
		if r.start < 0 || r.size < 0 || r.start+r.size > SizePartitionEnvelope {
			return fmt.Errorf("partition envelope: %s region [%#x,%#x) exceeds envelope %#x",
				r.name, r.start, r.start+r.size, SizePartitionEnvelope)
		}
	}
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a.start < b.start+b.size && b.start < a.start+a.size {
				return fmt.Errorf("partition envelope: %s region overlaps %s region", a.name, b.name)
			}
		}
	}
	if p.DataOffset() < SizePartitionEnvelope {
		return fmt.Errorf("partition envelope: data region starts at %#x, before envelope end %#x",
			p.DataOffset(), SizePartitionEnvelope)
	}
	if p.DataSize()%SizeCluster != 0 {
		return fmt.Errorf("partition envelope: data size %#x is not a multiple of cluster size %#x",
			p.DataSize(), int64(SizeCluster))
	}
	return nil
}
