package format

import "fmt"

// ClusterLayout describes the byte ranges inside one SizeCluster (0x8000
// byte) partition cluster: a SizeClusterHashArea (0x400) hash region
// followed by SizeClusterPayload (0x7C00) of content data.
//
// The hash region itself holds three hash levels:
//   - H0: one SHA-1 per 0x400-byte sub-block of this cluster's payload
//     (ClusterSubBlocks = 31 of them).
//   - H1: one SHA-1 per sibling cluster's H0 array, for the GroupClusters
//     (8) clusters in this cluster's group — i.e. this cluster carries a
//     copy of every H0-array-hash in its group, including its own.
//   - H2: one SHA-1 per sibling group's H1 array, for the groups making
//     up this cluster's supergroup (SupergroupClusters/GroupClusters = 8
//     groups).
//
// The remainder of the 0x400-byte hash area is zero padding.
const (
	h0Count  = ClusterSubBlocks
	h1Count  = GroupClusters
	h2Count  = SupergroupClusters / GroupClusters

	// The three hash arrays are NOT packed back to back: each is
	// followed by a fixed pad gap up to the next array's fixed
	// offset (0x280 for H1, 0x340 for H2, 0x400 for the payload).
	// These gaps are a real, load-bearing part of the on-disc layout
	// — the console reads H1/H2 from these exact offsets regardless
	// of how much of the preceding array's nominal size they'd need.
	h0AreaOff    = 0x000
	h1AreaOff    = 0x280
	h2AreaOff    = 0x340
	hashAreaUsed = 0x400

	// DataIVOffset is the offset, within the cluster's *encrypted* hash
	// area, of the 16 bytes used as the AES-CBC IV for the payload
	// region. This is the one deliberately non-obvious rule in the
	// whole format: the IV is read from the ciphertext of the hash
	// area (not the plaintext), specifically bytes 0x3D0..0x3E0, the
	// last 16 bytes of the H2 array's eighth entry.
	DataIVOffset = 0x3D0
)

// ClusterHashArea is the decoded contents of one cluster's 0x400-byte
// hash region.
type ClusterHashArea struct {
	H0 [h0Count][SizeSHA1]byte
	H1 [h1Count][SizeSHA1]byte
	H2 [h2Count][SizeSHA1]byte
}

// DecodeClusterHashArea parses the SizeClusterHashArea bytes at the
// front of a decrypted cluster.
func DecodeClusterHashArea(raw []byte) (*ClusterHashArea, error) {
	if len(raw) != SizeClusterHashArea {
		return nil, fmt.Errorf("cluster hash area: expected %d bytes, got %d", SizeClusterHashArea, len(raw))
	}
	a := &ClusterHashArea{}
	for i := 0; i < h0Count; i++ {
		copy(a.H0[i][:], raw[h0AreaOff+i*SizeSHA1:])
	}
	for i := 0; i < h1Count; i++ {
		copy(a.H1[i][:], raw[h1AreaOff+i*SizeSHA1:])
	}
	for i := 0; i < h2Count; i++ {
		copy(a.H2[i][:], raw[h2AreaOff+i*SizeSHA1:])
	}
	return a, nil
}

// EncodeClusterHashArea serializes a back into SizeClusterHashArea bytes,
// zero-padding the unused tail.
func EncodeClusterHashArea(a *ClusterHashArea) []byte {
	raw := make([]byte, SizeClusterHashArea)
	for i := 0; i < h0Count; i++ {
		copy(raw[h0AreaOff+i*SizeSHA1:], a.H0[i][:])
	}
	for i := 0; i < h1Count; i++ {
		copy(raw[h1AreaOff+i*SizeSHA1:], a.H1[i][:])
	}
	for i := 0; i < h2Count; i++ {
		copy(raw[h2AreaOff+i*SizeSHA1:], a.H2[i][:])
	}
	return raw
}
