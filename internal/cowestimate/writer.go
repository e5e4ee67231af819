package cowestimate

// SizeInfo is the outcome of a COW size estimation.
type SizeInfo struct {
	// CowSize is the estimated on-disk size of the COW image in bytes,
	// including per-op overhead and compressed data.
	CowSize uint64
	// OpCount is the number of COW operations emitted.
	OpCount uint64
}

// CowWriter receives the COW operations produced by a dry run. The real
// consumer writes a snapshot image; SizeEstimator merely accounts for what
// would be written.
type CowWriter interface {
	// AddCopy records that numBlocks blocks move from srcBlock to dstBlock.
	AddCopy(dstBlock, srcBlock, numBlocks uint64) error
	// AddXorBlocks records xor-compressed data for the blocks starting at
	// dstBlock. data holds one xored byte per target byte.
	AddXorBlocks(dstBlock uint64, data []byte, srcBlock, srcOffset uint64) error
	// AddZeroBlocks records a run of zero-filled blocks.
	AddZeroBlocks(startBlock, numBlocks uint64) error
	// AddRawBlocks records literal data for the blocks starting at startBlock.
	// len(data) must be a multiple of the block size.
	AddRawBlocks(startBlock uint64, data []byte) error
	// AddLabel records a resume label. Labels are written periodically during
	// a real install, so estimation emits them at the same cadence.
	AddLabel(label uint64) error
	// AddSequenceData records the block merge order.
	AddSequenceData(blocks []uint64) error
	// Finalize flushes the writer. No ops may be added afterwards.
	Finalize() error
}
