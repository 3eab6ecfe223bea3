package format

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDiscHeaderRoundTrip(t *testing.T) {
	raw := make([]byte, SizeDiscHeader)
	copy(raw[0:6], []byte("GALE01"))
	raw[6] = 0
	raw[7] = 0
	copy(raw[0x18:0x1C], []byte{0x5D, 0x1C, 0x9E, 0xA3})
	copy(raw[0x20:], []byte("Super Game Title"))

	h, err := DecodeDiscHeader(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.IsWii() {
		t.Fatalf("expected wii magic to be recognized")
	}
	if got := string(h.ID6[:]); got != "GALE01" {
		t.Fatalf("id6 = %q", got)
	}
	out := EncodeDiscHeader(h)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDiscHeaderAttribMultiBoot(t *testing.T) {
	raw := make([]byte, SizeDiscHeader)
	raw[0] = 0
	copy(raw[1:6], []byte("ALE01"))
	h, err := DecodeDiscHeader(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !h.Attrib().MultiBoot {
		t.Fatalf("expected multi-boot disc to be flagged from id6[0]==0 alone")
	}
}

func TestBootBlockRoundTrip(t *testing.T) {
	raw := make([]byte, SizeBootBlock)
	raw[3] = 0xAB
	raw[0x23] = 0x10
	b, err := DecodeBootBlock(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := EncodeBootBlock(b)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
}

func TestRegionRoundTrip(t *testing.T) {
	raw := make([]byte, SizeRegion)
	raw[3] = 1 // PAL
	r, err := DecodeRegion(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.RegionValue != 1 {
		t.Fatalf("region = %d, want 1", r.RegionValue)
	}
	out := EncodeRegion(r)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPTabDescriptorsRoundTrip(t *testing.T) {
	raw := make([]byte, MaxPartitionTables*8)
	raw[3] = 2  // table 0 count = 2
	raw[7] = 32 // table 0 off4

	d, err := DecodePTabDescriptors(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d[0].Count != 2 || d[0].ByteOffset() != 128 {
		t.Fatalf("unexpected descriptor: %+v", d[0])
	}
	out := EncodePTabDescriptors(d)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
}

func TestPartitionHeaderValidEnvelope(t *testing.T) {
	p := &PartitionHeader{
		TMDSize:   SizeTMDBase,
		TMDOff4:   0x2C0 / 4,
		CertSize:  0x400,
		CertOff4:  (0x2C0 + SizeTMDBase) / 4,
		H3Off4:    0x8000 / 4,
		DataOff4:  SizePartitionEnvelope / 4,
		DataSize4: SizeCluster / 4,
	}
	if err := p.ValidEnvelope(); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}

	bad := *p
	bad.DataOff4 = 0x1000 / 4
	if err := bad.ValidEnvelope(); err == nil {
		t.Fatalf("expected envelope violation for data region inside control area")
	}
}

func TestTicketRoundTrip(t *testing.T) {
	raw := make([]byte, SizeTicket)
	raw[TicketSigOff+0x40+0x3C+1+16+1+8+6] = 3 // common key index
	tk, err := DecodeTicket(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tk.CommonKeyIndex != 3 {
		t.Fatalf("common key index = %d, want 3", tk.CommonKeyIndex)
	}
	out := EncodeTicket(tk)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
	if len(tk.SignedRegion()) != SizeTicket-TicketSigOff {
		t.Fatalf("signed region length = %d", len(tk.SignedRegion()))
	}
}

func TestTicketZeroSignature(t *testing.T) {
	raw := make([]byte, SizeTicket)
	for i := range raw {
		raw[i] = 0xFF
	}
	tk, err := DecodeTicket(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tk.ZeroSignature()
	for _, b := range tk.Signature {
		if b != 0 {
			t.Fatalf("signature not zeroed")
		}
	}
	for _, b := range tk.FakeSign {
		if b != 0 {
			t.Fatalf("fake-sign field not zeroed")
		}
	}
}

func TestTMDRoundTrip(t *testing.T) {
	base := make([]byte, SizeTMDBase)
	base[TMDSigOff+0x40+8] = 0 // a SysVersion byte, keep zero
	content := EncodeTMDContent(TMDContent{ContentID: 1, Index: 0, Type: 0x8001, Size: 0x7C00})
	raw := append(base, content...)
	binaryPutNumContents(raw, 1)

	tmd, err := DecodeTMD(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tmd.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(tmd.Contents))
	}
	if tmd.Contents[0].Size != 0x7C00 {
		t.Fatalf("content size = %#x", tmd.Contents[0].Size)
	}
	out := EncodeTMD(tmd)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
}

// binaryPutNumContents pokes the NumContents field of a raw TMD buffer
// directly, mirroring the fixed-header layout established in tmd.go,
// so the round-trip test can build a self-consistent buffer without
// duplicating the whole encoder.
func binaryPutNumContents(raw []byte, n uint16) {
	off := TMDSigOff + 0x40 + 1 + 1 + 1 + 1 + 8 + 8 + 4 + 2 + 0x3A + 4 + 4 + 2
	raw[off] = byte(n >> 8)
	raw[off+1] = byte(n)
}

func TestFSTParseAndWalk(t *testing.T) {
	names := "file1\x00sub\x00file2\x00"
	nodes := []FSTNode{
		{Index: 0, IsDir: true, SubtreeEnd: 4},
		{Index: 1, Name: "file1", IsDir: false, DataOff4: 0, Size: 10},
		{Index: 2, Name: "sub", IsDir: true, ParentIndex: 0, SubtreeEnd: 4},
		{Index: 3, Name: "file2", IsDir: false, DataOff4: 0x100, Size: 20},
	}
	encoded, err := EncodeFST(nodes)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = names

	parsed, err := ParseFST(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 4 {
		t.Fatalf("parsed %d nodes, want 4", len(parsed))
	}
	if parsed[1].Name != "file1" || parsed[3].Name != "file2" {
		t.Fatalf("unexpected names: %+v", parsed)
	}

	var visited []string
	WalkFST(parsed, '/', func(n FSTNode, path string) VisitResult {
		visited = append(visited, path)
		return VisitContinue
	})
	if len(visited) != 3 {
		t.Fatalf("visited %d entries, want 3: %v", len(visited), visited)
	}
	if visited[2] != "sub/file2" {
		t.Fatalf("expected nested path sub/file2, got %q", visited[2])
	}
}

func TestFSTWalkSkipSubtree(t *testing.T) {
	nodes := []FSTNode{
		{Index: 0, IsDir: true, SubtreeEnd: 3},
		{Index: 1, Name: "dir", IsDir: true, SubtreeEnd: 3},
		{Index: 2, Name: "inner", IsDir: false},
	}
	var visited int
	WalkFST(nodes, '/', func(n FSTNode, path string) VisitResult {
		visited++
		if n.Name == "dir" {
			return VisitSkipSubtree
		}
		return VisitContinue
	})
	if visited != 1 {
		t.Fatalf("expected subtree to be skipped, visited=%d", visited)
	}
}

func TestDOLCalcRecordsMerge(t *testing.T) {
	h := &DOLHeader{}
	h.TextOffset[0] = 0x100
	h.TextSize[0] = 0x200
	h.DataOffset[0] = 0x300 // abuts text[0]
	h.DataSize[0] = 0x100
	h.DataOffset[1] = 0x500 // gap
	h.DataSize[1] = 0x50

	recs := CalcDOLRecords(h)
	if len(recs) != 2 {
		t.Fatalf("expected 2 merged records, got %d: %+v", len(recs), recs)
	}
	if recs[0].Offset != 0x100 || recs[0].Size != 0x300 {
		t.Fatalf("unexpected merged record 0: %+v", recs[0])
	}
	if got := h.TotalFileSize(); got != 0x550 {
		t.Fatalf("total file size = %#x, want 0x550", got)
	}
}

func TestCertChainParseRoundTrip(t *testing.T) {
	sigLen, padLen, _ := sigSizeForType(SigTypeRSA2048SHA1)
	keyLen, _ := keySizeForType(KeyTypeRSA2048)

	raw := make([]byte, 4+sigLen+padLen+0x40+4+0x40+keyLen)
	off := 0
	binary.BigEndian.PutUint32(raw[0:4], uint32(SigTypeRSA2048SHA1))
	off = 4 + sigLen + padLen
	copy(raw[off:off+0x40], []byte("Root-CA00000001"))
	off += 0x40
	raw[off+3] = byte(KeyTypeRSA2048)
	off += 4
	copy(raw[off:off+0x40], []byte("XS00000003"))

	certs, err := ParseCertChain(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(certs) != 1 {
		t.Fatalf("expected 1 cert, got %d", len(certs))
	}
	if certs[0].EncodedSize != len(raw) {
		t.Fatalf("encoded size = %d, want %d", certs[0].EncodedSize, len(raw))
	}
	out := EncodeCertChain(certs)
	if !bytes.Equal(out, raw) {
		t.Fatalf("round trip mismatch")
	}
	if chain := IssuerChain(certs); chain != "XS00000003" {
		t.Fatalf("issuer chain = %q", chain)
	}
	if got := certs[0].SubjectName(); got != "XS00000003" {
		t.Fatalf("subject name = %q", got)
	}
	if got := certs[0].IssuerName(); got != "Root-CA00000001" {
		t.Fatalf("issuer name = %q", got)
	}
	if got := certs[0].KeyTypeName(); got != "RSA2048" {
		t.Fatalf("key type name = %q", got)
	}
}

func TestSizesMatchSpec(t *testing.T) {
	cases := map[string]struct {
		got, want int
	}{
		"disc header":      {SizeDiscHeader, 0x100},
		"boot block":        {SizeBootBlock, 0x440},
		"region":            {SizeRegion, 0x20},
		"ticket":            {SizeTicket, 0x2A4},
		"partition header":  {SizePartitionHead, 0x2C0},
		"tmd base":          {SizeTMDBase, 0x1E4},
		"tmd content":       {SizeTMDContent, 0x24},
		"fst item":          {SizeFSTItem, 12},
		"h3 block":          {SizeH3Block, 0x18000},
		"cluster":           {SizeCluster, 0x8000},
		"cluster hash area": {SizeClusterHashArea, 0x400},
		"cluster payload":   {SizeClusterPayload, 0x7C00},
		"dol header":        {SizeDOLHeader, 0x100},
	}
	for name, c := range cases {
		if c.got != c.want {
			t.Errorf("%s size = %#x, want %#x", name, c.got, c.want)
		}
	}
}
