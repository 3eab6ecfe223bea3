package crypto

import (
	"bytes"
	"crypto/sha1"
	"fmt"

	"github.com/wiimm/witcore/internal/format"
)

// subBlockSize is the size of one H0-level hashed chunk within a
// cluster's payload: SizeClusterPayload (0x7C00) divides evenly into
// ClusterSubBlocks (31) chunks of this size.
const subBlockSize = format.SizeClusterPayload / format.ClusterSubBlocks

// computeH0 hashes each of the ClusterSubBlocks chunks of a decrypted
// cluster payload.
func computeH0(payload []byte) ([format.ClusterSubBlocks][format.SizeSHA1]byte, error) {
	var h0 [format.ClusterSubBlocks][format.SizeSHA1]byte
	if len(payload) != format.SizeClusterPayload {
		return h0, fmt.Errorf("crypto: payload must be %d bytes, got %d", format.SizeClusterPayload, len(payload))
	}
	for i := 0; i < format.ClusterSubBlocks; i++ {
		sum := sha1.Sum(payload[i*subBlockSize : (i+1)*subBlockSize])
		h0[i] = sum
	}
	return h0, nil
}

// PartitionHashTree is the full, rebuildable hash tree for one
// partition's data region: per-cluster hash areas (H0/H1/H2, embedded
// in the encrypted stream ahead of each cluster's payload) plus the
// external H3 table referenced by the partition header.
type PartitionHashTree struct {
	Clusters []*format.ClusterHashArea
	H3Table  []byte // SizeH3Block bytes
}

// BuildPartitionHashTree computes the complete three-level hash tree
// (plus the external H3 table) for a partition given its decrypted
// cluster payloads, in on-disc cluster order.
//
// Clusters are grouped GroupClusters (8) at a time for the H1 level,
// and groups are further grouped GroupClusters at a time (a
// "supergroup" of SupergroupClusters = 64 clusters) for the H2/H3
// levels. A trailing partial group or supergroup is zero-padded: a
// missing cluster's (or group's) digest slot in its siblings' H1 (or
// H2) array is left as all-zero bytes rather than filled with a hash,
// for partitions whose cluster count isn't a multiple of 64.
func BuildPartitionHashTree(payloads [][]byte) (*PartitionHashTree, error) {
	n := len(payloads)
	h0s := make([][format.ClusterSubBlocks][format.SizeSHA1]byte, n)
	for i, p := range payloads {
		h0, err := computeH0(p)
		if err != nil {
			return nil, fmt.Errorf("crypto: cluster %d: %w", i, err)
		}
		h0s[i] = h0
	}

	tree := &PartitionHashTree{
		Clusters: make([]*format.ClusterHashArea, n),
		H3Table:  make([]byte, format.SizeH3Block),
	}
	for i := range tree.Clusters {
		tree.Clusters[i] = &format.ClusterHashArea{H0: h0s[i]}
	}

	groupClusters := format.GroupClusters
	superGroupClusters := format.SupergroupClusters
	groupsPerSuper := superGroupClusters / groupClusters

	numGroups := (n + groupClusters - 1) / groupClusters
	h1Arrays := make([][format.GroupClusters][format.SizeSHA1]byte, numGroups)
	for g := 0; g < numGroups; g++ {
		var h1 [format.GroupClusters][format.SizeSHA1]byte
		for j := 0; j < groupClusters; j++ {
			ci := g*groupClusters + j
			if ci < n {
				h1[j] = sha1.Sum(flattenH0(h0s[ci]))
			}
			// else: missing cluster, hash of implicit zero H0 array
			// would require a full zero array; real partitions never
			// reference a missing slot's H1 entry since ClusterCount
			// for that group is truncated accordingly, so we leave it
			// as the zero value deliberately.
		}
		h1Arrays[g] = h1
		for j := 0; j < groupClusters; j++ {
			ci := g*groupClusters + j
			if ci < n {
				tree.Clusters[ci].H1 = h1
			}
		}
	}

	numSupers := (numGroups + groupsPerSuper - 1) / groupsPerSuper
	for s := 0; s < numSupers; s++ {
		var h2 [format.GroupClusters][format.SizeSHA1]byte
		for j := 0; j < groupsPerSuper; j++ {
			gi := s*groupsPerSuper + j
			if gi < numGroups {
				h2[j] = sha1.Sum(flattenH1(h1Arrays[gi]))
			}
		}
		for j := 0; j < groupsPerSuper; j++ {
			gi := s*groupsPerSuper + j
			if gi >= numGroups {
				continue
			}
			for k := 0; k < groupClusters; k++ {
				ci := gi*groupClusters + k
				if ci < n {
					tree.Clusters[ci].H2 = h2
				}
			}
		}
		h3Entry := sha1.Sum(flattenH1(h2))
		off := s * format.SizeSHA1
		if off+format.SizeSHA1 <= len(tree.H3Table) {
			copy(tree.H3Table[off:off+format.SizeSHA1], h3Entry[:])
		}
	}

	return tree, nil
}

// ContentHash returns the SHA-1 over the complete H3 table, the value
// stored as content[0]'s hash in the partition's TMD.
func (t *PartitionHashTree) ContentHash() [format.SizeSHA1]byte {
	return sha1.Sum(t.H3Table)
}

// VerifyCluster recomputes cluster i's H0 array from payload and checks
// it against the area decoded from the encrypted stream, then checks
// area's H1/H2 arrays against the tree built from the whole partition.
// Used by VERIFY to localize a hash-tree mismatch to a specific level.
func (t *PartitionHashTree) VerifyCluster(i int, area *format.ClusterHashArea, payload []byte) error {
	if i < 0 || i >= len(t.Clusters) {
		return fmt.Errorf("crypto: cluster index %d out of range", i)
	}
	h0, err := computeH0(payload)
	if err != nil {
		return err
	}
	if h0 != area.H0 {
		return fmt.Errorf("crypto: cluster %d: H0 mismatch", i)
	}
	if area.H0 != t.Clusters[i].H0 {
		return fmt.Errorf("crypto: cluster %d: H0 does not match rebuilt tree", i)
	}
	if area.H1 != t.Clusters[i].H1 {
		return fmt.Errorf("crypto: cluster %d: H1 mismatch", i)
	}
	if area.H2 != t.Clusters[i].H2 {
		return fmt.Errorf("crypto: cluster %d: H2 mismatch", i)
	}
	return nil
}

// VerifyContentHash compares t's H3 table hash against want (the
// content[0] hash recorded in a TMD).
func (t *PartitionHashTree) VerifyContentHash(want [format.SizeSHA1]byte) bool {
	got := t.ContentHash()
	return bytes.Equal(got[:], want[:])
}

func flattenH0(h0 [format.ClusterSubBlocks][format.SizeSHA1]byte) []byte {
	out := make([]byte, 0, format.ClusterSubBlocks*format.SizeSHA1)
	for _, h := range h0 {
		out = append(out, h[:]...)
	}
	return out
}

func flattenH1(h1 [format.GroupClusters][format.SizeSHA1]byte) []byte {
	out := make([]byte, 0, format.GroupClusters*format.SizeSHA1)
	for _, h := range h1 {
		out = append(out, h[:]...)
	}
	return out
}
