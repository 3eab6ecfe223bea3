package format

import (
	"encoding/binary"
	"fmt"

	"github.com/wiimm/witcore/internal/utils/security"
)

// FSTRawItem is a single 12-byte FST record as it appears on disc: a flag
// byte + 24-bit name-pool offset, then two big-endian uint32 fields whose
// meaning depends on the flag (file: data-offset/size; directory:
// parent-index/subtree-end).
type FSTRawItem struct {
	IsDir      bool
	NameOff    uint32 // 24-bit offset into the name pool
	Field1     uint32 // file: data off4; dir: parent index
	Field2     uint32 // file: size; dir: index of first entry past this subtree
}

// DecodeFSTRawItem parses SizeFSTItem bytes.
func DecodeFSTRawItem(raw []byte) (FSTRawItem, error) {
	var it FSTRawItem
	if len(raw) != SizeFSTItem {
		return it, fmt.Errorf("fst item: expected %d bytes, got %d", SizeFSTItem, len(raw))
	}
	word0 := binary.BigEndian.Uint32(raw[0:4])
	it.IsDir = raw[0] != 0
	it.NameOff = word0 & 0x00FFFFFF
	it.Field1 = binary.BigEndian.Uint32(raw[4:8])
	it.Field2 = binary.BigEndian.Uint32(raw[8:12])
	return it, nil
}

// EncodeFSTRawItem serializes it back into SizeFSTItem bytes.
func EncodeFSTRawItem(it FSTRawItem) []byte {
	raw := make([]byte, SizeFSTItem)
	word0 := it.NameOff & 0x00FFFFFF
	if it.IsDir {
		word0 |= 0x01000000
	}
	binary.BigEndian.PutUint32(raw[0:4], word0)
	binary.BigEndian.PutUint32(raw[4:8], it.Field1)
	binary.BigEndian.PutUint32(raw[8:12], it.Field2)
	return raw
}

// FSTNode is one decoded, named entry in an FST tree: index-based by
// construction (ParentIndex/SubtreeEnd reference array positions) —
// never built as a pointer-linked tree.
type FSTNode struct {
	Index       int
	Name        string
	IsDir       bool
	ParentIndex int    // directories only
	SubtreeEnd  int    // directories only: index one past this subtree
	DataOff4    uint32 // files only
	Size        uint32 // files only
}

// ParseFST decodes a complete FST blob: record 0 is the root directory
// and holds the total record count in its Field2 (size) slot; strings
// live in a name pool immediately following the record array.
func ParseFST(raw []byte) ([]FSTNode, error) {
	if len(raw) < SizeFSTItem {
		return nil, fmt.Errorf("fst: shorter than one record")
	}
	root, err := DecodeFSTRawItem(raw[0:SizeFSTItem])
	if err != nil {
		return nil, err
	}
	if !root.IsDir {
		return nil, fmt.Errorf("fst: record 0 is not a directory")
	}
	count := int(root.Field2)
	if count <= 0 {
		return nil, fmt.Errorf("fst: invalid record count %d", count)
	}
	recordsEnd := count * SizeFSTItem
	if recordsEnd > len(raw) {
		return nil, fmt.Errorf("fst: record count %d exceeds file size", count)
	}
	namePool := raw[recordsEnd:]

	nodes := make([]FSTNode, count)
	for i := 0; i < count; i++ {
		it, err := DecodeFSTRawItem(raw[i*SizeFSTItem : (i+1)*SizeFSTItem])
		if err != nil {
			return nil, fmt.Errorf("fst: record %d: %w", i, err)
		}
		name := ""
		if i != 0 {
			var err error
			name, err = readNameString(namePool, it.NameOff)
			if err != nil {
				return nil, fmt.Errorf("fst: record %d: %w", i, err)
			}
			if err := security.ValidateString(fmt.Sprintf("fst-name[%d]", i), name, security.DiscFieldLimits()); err != nil {
				return nil, err
			}
		}
		n := FSTNode{Index: i, Name: name, IsDir: it.IsDir}
		if it.IsDir {
			n.ParentIndex = int(it.Field1)
			n.SubtreeEnd = int(it.Field2)
			if n.SubtreeEnd < i || n.SubtreeEnd > count {
				return nil, fmt.Errorf("fst: record %d: subtree end %d out of range [%d,%d]", i, n.SubtreeEnd, i, count)
			}
		} else {
			n.DataOff4 = it.Field1
			n.Size = it.Field2
		}
		nodes[i] = n
	}
	return nodes, nil
}

func readNameString(pool []byte, off uint32) (string, error) {
	if int(off) >= len(pool) {
		return "", fmt.Errorf("name offset %#x exceeds name pool size %#x", off, len(pool))
	}
	end := int(off)
	for end < len(pool) && pool[end] != 0 {
		end++
	}
	if end >= len(pool) {
		return "", fmt.Errorf("unterminated name string at offset %#x", off)
	}
	return string(pool[off:end]), nil
}

// EncodeFST serializes nodes (as produced by ParseFST, or freshly built)
// back into a record array followed by a freshly built name pool.
func EncodeFST(nodes []FSTNode) ([]byte, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("fst: no nodes")
	}
	records := make([]byte, len(nodes)*SizeFSTItem)
	var pool []byte
	for i, n := range nodes {
		var it FSTRawItem
		it.IsDir = n.IsDir
		if i == 0 {
			it.Field1 = 0
			it.Field2 = uint32(len(nodes))
		} else if n.IsDir {
			it.NameOff = uint32(len(pool))
			pool = append(pool, []byte(n.Name)...)
			pool = append(pool, 0)
			it.Field1 = uint32(n.ParentIndex)
			it.Field2 = uint32(n.SubtreeEnd)
		} else {
			it.NameOff = uint32(len(pool))
			pool = append(pool, []byte(n.Name)...)
			pool = append(pool, 0)
			it.Field1 = n.DataOff4
			it.Field2 = n.Size
		}
		copy(records[i*SizeFSTItem:(i+1)*SizeFSTItem], EncodeFSTRawItem(it))
	}
	return append(records, pool...), nil
}

// VisitResult is returned by an FST visitor to control traversal: the
// FST walk is expressed as a visitor callback (push-style) rather than
// a yielding iterator.
type VisitResult int

const (
	VisitContinue VisitResult = iota
	VisitStop
	VisitSkipSubtree
)

// Visitor is invoked once per FST node below the root during WalkFST,
// in record order (depth-first, matching on-disc layout). The root
// record itself is not visited.
type Visitor func(node FSTNode, path string) VisitResult

// WalkFST performs a push-style, depth-first traversal of nodes (as
// returned by ParseFST), building '/'-joined paths explicitly (FST names
// containing a path separator are treated as literal characters).
func WalkFST(nodes []FSTNode, sep byte, visit Visitor) {
	if len(nodes) == 0 {
		return
	}
	var walk func(start, end int, prefix string) bool // returns false to stop entirely
	walk = func(start, end int, prefix string) bool {
		i := start
		for i < end {
			n := nodes[i]
			path := joinPath(prefix, n.Name, sep)
			switch visit(n, path) {
			case VisitStop:
				return false
			case VisitSkipSubtree:
				if n.IsDir {
					i = n.SubtreeEnd
				} else {
					i++
				}
				continue
			}
			if n.IsDir {
				if !walk(i+1, n.SubtreeEnd, path) {
					return false
				}
				i = n.SubtreeEnd
			} else {
				i++
			}
		}
		return true
	}
	walk(1, len(nodes), "")
}

func joinPath(prefix, name string, sep byte) string {
	if prefix == "" {
		return name
	}
	return prefix + string(sep) + name
}
