package format

import (
	"encoding/binary"
	"fmt"
)

// DOL section counts: a GameCube/Wii executable has up to 7 text
// sections and 11 data sections, each described by an (offset,
// load-address, size) triple in the DOL header.
const (
	DOLTextSections = 7
	DOLDataSections = 11
	SizeDOLHeader   = 0x100
)

// DOLHeader is the fixed 0x100-byte DOL executable header.
type DOLHeader struct {
	TextOffset [DOLTextSections]uint32
	DataOffset [DOLDataSections]uint32
	TextAddr   [DOLTextSections]uint32
	DataAddr   [DOLDataSections]uint32
	TextSize   [DOLTextSections]uint32
	DataSize   [DOLDataSections]uint32
	BSSAddr    uint32
	BSSSize    uint32
	EntryPoint uint32
	Reserved   [0x1C]byte
}

// DecodeDOLHeader parses SizeDOLHeader bytes.
func DecodeDOLHeader(raw []byte) (*DOLHeader, error) {
	if len(raw) != SizeDOLHeader {
		return nil, fmt.Errorf("dol header: expected %d bytes, got %d", SizeDOLHeader, len(raw))
	}
	h := &DOLHeader{}
	off := 0
	readArr := func(dst []uint32) {
		for i := range dst {
			dst[i] = binary.BigEndian.Uint32(raw[off : off+4])
			off += 4
		}
	}
	readArr(h.TextOffset[:])
	readArr(h.DataOffset[:])
	readArr(h.TextAddr[:])
	readArr(h.DataAddr[:])
	readArr(h.TextSize[:])
	readArr(h.DataSize[:])
	h.BSSAddr = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	h.BSSSize = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	h.EntryPoint = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	copy(h.Reserved[:], raw[off:])
	off += len(h.Reserved)
	if off != SizeDOLHeader {
		return nil, fmt.Errorf("dol header: internal layout mismatch, off=%d", off)
	}
	return h, nil
}

// EncodeDOLHeader serializes h back into SizeDOLHeader bytes.
func EncodeDOLHeader(h *DOLHeader) []byte {
	raw := make([]byte, SizeDOLHeader)
	off := 0
	put := func(src []uint32) {
		for _, v := range src {
			binary.BigEndian.PutUint32(raw[off:off+4], v)
			off += 4
		}
	}
	put(h.TextOffset[:])
	put(h.DataOffset[:])
	put(h.TextAddr[:])
	put(h.DataAddr[:])
	put(h.TextSize[:])
	put(h.DataSize[:])
	binary.BigEndian.PutUint32(raw[off:off+4], h.BSSAddr)
	off += 4
	binary.BigEndian.PutUint32(raw[off:off+4], h.BSSSize)
	off += 4
	binary.BigEndian.PutUint32(raw[off:off+4], h.EntryPoint)
	off += 4
	copy(raw[off:], h.Reserved[:])
	return raw
}

// DOLRecord describes one contiguous region of a DOL file for copy or
// patch purposes: a (file-offset, size) pair, tagged with whether it is
// a text or data section (bss sections carry no file bytes and are
// excluded).
type DOLRecord struct {
	Offset uint32
	Size   uint32
	IsText bool
	Index  int
}

// CalcDOLRecords extracts the non-empty section records from h and
// returns them sorted and merged: the DOL format allows sections to
// abut with no gap, and tools (including the original wit) coalesce
// adjacent regions before deciding where a patch may be inserted.
func CalcDOLRecords(h *DOLHeader) []DOLRecord {
	var recs []DOLRecord
	for i := 0; i < DOLTextSections; i++ {
		if h.TextSize[i] == 0 {
			continue
		}
		recs = append(recs, DOLRecord{Offset: h.TextOffset[i], Size: h.TextSize[i], IsText: true, Index: i})
	}
	for i := 0; i < DOLDataSections; i++ {
		if h.DataSize[i] == 0 {
			continue
		}
		recs = append(recs, DOLRecord{Offset: h.DataOffset[i], Size: h.DataSize[i], IsText: false, Index: i})
	}

	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j-1].Offset > recs[j].Offset; j-- {
			recs[j-1], recs[j] = recs[j], recs[j-1]
		}
	}

	merged := recs[:0:0]
	for _, r := range recs {
		if n := len(merged); n > 0 {
			last := merged[n-1]
			if last.Offset+last.Size == r.Offset {
				merged[n-1].Size += r.Size
				continue
			}
		}
		merged = append(merged, r)
	}
	return merged
}

// TotalFileSize returns the highest (offset+size) across all sections,
// i.e. the minimum file length the DOL occupies, excluding bss.
func (h *DOLHeader) TotalFileSize() uint32 {
	var max uint32
	for _, r := range CalcDOLRecords(h) {
		if end := r.Offset + r.Size; end > max {
			max = end
		}
	}
	return max
}
