// Package format implements the fixed-offset on-disc structures shared by
// GameCube and Wii optical-disc images: disc header, boot block, region
// block, partition table, ticket, TMD, certificate chain entries, the
// file-system table (FST) and the DOL executable header.
//
// All multi-byte integers on disc are big-endian. Structure sizes are
// exact and enforced at decode time via the constants below.
package format

// Exact on-disc structure sizes, asserted by every Decode function and by
// TestSizesMatchSpec.
const (
	SizeDiscHeader     = 0x100
	SizeBootBlock      = 0x440
	SizeRegion         = 0x20
	SizeTicket         = 0x2A4
	SizePartitionHead  = 0x2C0
	SizeTMDBase        = 0x1E4
	SizeTMDContent     = 0x24
	SizeFSTItem        = 12
	SizeH3Block        = 0x18000 // room for 4915 SHA-1 digests
	SizeCluster        = 0x8000
	SizeClusterHashArea = 0x400
	SizeClusterPayload  = 0x7C00
	SizeSHA1            = 20

	// Partition envelope: ticket + partition header + TMD + cert + H3 all
	// live within this many bytes before the data region starts.
	SizePartitionEnvelope = 0x20000
)

// H3BlockDigests is the number of SHA-1 digests an H3 block carries.
const H3BlockDigests = SizeH3Block / SizeSHA1 // 4915

// ClusterSubBlocks is the number of 0x400-byte sub-blocks hashed by H0 per
// cluster.
const ClusterSubBlocks = 31

// GroupClusters / SupergroupClusters are the unit sizes over which H1 and
// H2 are defined: a group is 8 clusters, a supergroup is 8 groups.
const (
	GroupClusters      = 8
	SupergroupClusters = GroupClusters * GroupClusters // 64
)
