package extents

import (
	"fmt"
	"math"
)

// SparseHole is the reserved start block marking an extent that does not map
// to real blocks (e.g. a gap in a sparse file). It never overlaps or touches
// anything, including another hole, and is never stored in a RangeSet.
const SparseHole uint64 = math.MaxUint64

// EmptyExtent is an extent that is always empty.
var EmptyExtent = Extent{StartBlock: SparseHole, NumBlocks: 0}

// Extent is a half-open interval of block indices,
// [StartBlock, StartBlock+NumBlocks).
type Extent struct {
	StartBlock uint64
	NumBlocks  uint64
}

func ExtentForRange(startBlock, numBlocks uint64) Extent {
	return Extent{StartBlock: startBlock, NumBlocks: numBlocks}
}

// ExtentForBytes returns the extent covering the byte range
// [startBytes, startBytes+sizeBytes). The start is rounded down and the end
// rounded up to block boundaries, so the extent may over-cover at both ends;
// callers must not rely on sub-block precision.
func ExtentForBytes(blockSize, startBytes, sizeBytes uint64) Extent {
	startBlock := startBytes / blockSize
	endBlock := (startBytes + sizeBytes + blockSize - 1) / blockSize
	return ExtentForRange(startBlock, endBlock-startBlock)
}

// End returns the first block past the extent.
func (e Extent) End() uint64 {
	return e.StartBlock + e.NumBlocks
}

// IsEmpty reports whether the extent covers no real blocks.
func (e Extent) IsEmpty() bool {
	return e.StartBlock == SparseHole || e.NumBlocks == 0
}

func (e Extent) ContainsBlock(block uint64) bool {
	if e.StartBlock == SparseHole {
		return false
	}
	return e.StartBlock <= block && block < e.End()
}

func (e Extent) Less(other Extent) bool {
	if e.StartBlock != other.StartBlock {
		return e.StartBlock < other.StartBlock
	}
	return e.NumBlocks < other.NumBlocks
}

func (e Extent) String() string {
	if e.StartBlock == SparseHole {
		return fmt.Sprintf("[hole, %d blocks)", e.NumBlocks)
	}
	return fmt.Sprintf("[%d, %d)", e.StartBlock, e.End())
}

// ExtentsOverlap reports whether a and b share at least one block. Touching
// extents do not overlap, and a sparse hole overlaps nothing.
func ExtentsOverlap(a, b Extent) bool {
	if a.StartBlock == b.StartBlock {
		return a.NumBlocks != 0
	}
	if a.StartBlock == SparseHole || b.StartBlock == SparseHole {
		return false
	}
	if a.StartBlock < b.StartBlock {
		return a.End() > b.StartBlock
	}
	return b.End() > a.StartBlock
}

// ExtentsOverlapOrTouch is ExtentsOverlap with adjacency counted as well: an
// extent ending exactly where the other begins qualifies.
func ExtentsOverlapOrTouch(a, b Extent) bool {
	if a.StartBlock == b.StartBlock {
		return true
	}
	if a.StartBlock == SparseHole || b.StartBlock == SparseHole {
		return false
	}
	if a.StartBlock < b.StartBlock {
		return a.End() >= b.StartBlock
	}
	return b.End() >= a.StartBlock
}

// UnionOverlappingExtents returns the minimal extent spanning a and b. Both
// must be non-sparse and must overlap or touch.
func UnionOverlappingExtents(a, b Extent) Extent {
	if a.StartBlock == SparseHole || b.StartBlock == SparseHole {
		panic("cannot union sparse extents")
	}
	if !ExtentsOverlapOrTouch(a, b) {
		panic("cannot union non-overlapping, non-touching extents")
	}
	start := min(a.StartBlock, b.StartBlock)
	end := max(a.End(), b.End())
	return ExtentForRange(start, end-start)
}

// GetOverlapExtent returns the sub-interval shared by a and b, or EmptyExtent
// if they do not overlap.
func GetOverlapExtent(a, b Extent) Extent {
	if !ExtentsOverlap(a, b) {
		return EmptyExtent
	}
	start := max(a.StartBlock, b.StartBlock)
	end := min(a.End(), b.End())
	return ExtentForRange(start, end-start)
}

// BlocksInExtents returns the total number of blocks in the given extents.
func BlocksInExtents(extents []Extent) uint64 {
	var total uint64
	for _, e := range extents {
		total += e.NumBlocks
	}
	return total
}
