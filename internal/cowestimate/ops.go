package cowestimate

import (
	"bytes"
	"fmt"

	"github.com/garethgeorge/gootagen/internal/extents"
	"github.com/minio/sha256-simd"
)

type OpType int

const (
	// Replace writes new payload data to the destination extents.
	Replace OpType = iota
	// Zero fills the destination extents with zeros.
	Zero
	// SourceCopy copies blocks from the source image.
	SourceCopy
)

// InstallOperation is one step of an update payload, addressed in block
// extents of the source and target images. Wire encoding is out of scope
// here; a decoder hands these in already parsed.
type InstallOperation struct {
	Type       OpType
	SrcExtents []extents.Extent
	DstExtents []extents.Extent

	// Data is the operation's payload blob, present for replace-style ops.
	Data []byte
	// DataSHA256 is the expected hash of Data, empty if unhashed.
	DataSHA256 []byte
}

// VerifyData checks the operation's payload blob against its recorded hash.
// Operations without data or without a recorded hash pass trivially.
func (op InstallOperation) VerifyData() error {
	if len(op.Data) == 0 || len(op.DataSHA256) == 0 {
		return nil
	}
	sum := sha256.Sum256(op.Data)
	if !bytes.Equal(sum[:], op.DataSHA256) {
		return fmt.Errorf("operation data hash mismatch: got %x, want %x", sum, op.DataSHA256)
	}
	return nil
}

type MergeOpType int

const (
	// CowCopy moves source blocks to the destination during merge.
	CowCopy MergeOpType = iota
	// CowXor stores the xor of source and target blocks.
	CowXor
)

// MergeOperation relates a source extent to the destination extent it merges
// into.
type MergeOperation struct {
	Type      MergeOpType
	SrcExtent extents.Extent
	DstExtent extents.Extent

	// SrcOffset is a byte offset into the first source block, used by xor
	// ops whose source range is not block aligned.
	SrcOffset uint64
}
