package disc

// PatchKind distinguishes a raw byte overlay from a named system-file
// replacement; both are applied the same way once resolved to a
// (partition, off4, bytes) triple.
type PatchKind int

const (
	PatchKindBytes PatchKind = iota
	PatchKindFile
)

// patch is one pending overlay: data replaces the partition's
// cleartext view starting at the 4-byte-unit offset off4, for as many
// bytes as len(data) covers.
type patch struct {
	part *Partition
	kind PatchKind
	off4 uint32
	data []byte
}

// wpatMagic is the on-disc marker for a serialized patch-file entry,
// ported from the original tool's wpat_magic constant (file-formats.c):
// a fixed 14-byte tag followed by a packed 32-bit type/size field where
// the low 24 bits hold a size (in 4-byte units) and the high 8 bits
// hold a type tag. Only the packing helpers are ported here; this
// package applies patches in memory rather than reading them from a
// .wpat file on disk.
const wpatMagic = "WPAT-WIT-PATCH"

// wpatGetSize unpacks the size (in bytes) encoded in a type/size field
// as produced by wpatPackTypeSize.
func wpatGetSize(typeSize uint32) int64 {
	return int64(typeSize&0xFFFFFF) << 2
}

// wpatPackTypeSize packs a byte size (must be a multiple of 4) and a
// type tag into the on-disc type/size field.
func wpatPackTypeSize(sizeBytes int64, typ byte) uint32 {
	return uint32(typ)<<24 | uint32(sizeBytes>>2)&0xFFFFFF
}

// ApplyPatch registers a patch against part, overlaying data onto the
// partition's cleartext view starting at the 4-byte-unit offset off4.
// Patches are applied lazily: ReadPart overlays every registered patch
// intersecting the requested range at read time, in registration
// order (a later patch wins over an earlier one on overlap, matching
// the original tool's "last patch registered takes priority" rule for
// stacked skeleton/dolpatch edits).
func (d *Disc) ApplyPatch(part *Partition, kind PatchKind, off4 uint32, data []byte) {
	d.patches = append(d.patches, patch{part: part, kind: kind, off4: off4, data: data})
}

// applyPatches overlays every registered patch against part that
// intersects [off4*4, off4*4+len(out)) onto out, in registration order.
func (d *Disc) applyPatches(part *Partition, off4 uint32, out []byte) []byte {
	start := int64(off4) * 4
	end := start + int64(len(out))
	for _, p := range d.patches {
		if p.part != part {
			continue
		}
		pStart := int64(p.off4) * 4
		pEnd := pStart + int64(len(p.data))
		if pEnd <= start || pStart >= end {
			continue
		}
		loOut, loPatch := pStart-start, int64(0)
		if loOut < 0 {
			loPatch, loOut = -loOut, 0
		}
		hiOut := pEnd - start
		if hiOut > int64(len(out)) {
			hiOut = int64(len(out))
		}
		copy(out[loOut:hiOut], p.data[loPatch:loPatch+(hiOut-loOut)])
	}
	return out
}
