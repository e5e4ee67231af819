package extents

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/google/btree"
)

// RangeSet tracks which blocks of a linear block address space are covered,
// as a sorted collection of disjoint extents with a running block count.
// It is not thread-safe.
type RangeSet struct {
	set    *btree.BTreeG[Extent]
	blocks uint64

	// mergeTouching causes AddExtent to coalesce extents that merely touch,
	// not just extents that overlap.
	mergeTouching bool
}

func NewRangeSet(mergeTouching bool) *RangeSet {
	return &RangeSet{
		set:           btree.NewG(32, func(a, b Extent) bool { return a.StartBlock < b.StartBlock }),
		mergeTouching: mergeTouching,
	}
}

// Blocks returns the total number of blocks covered by the set.
func (r *RangeSet) Blocks() uint64 {
	return r.blocks
}

// Len returns the number of stored extents.
func (r *RangeSet) Len() int {
	return r.set.Len()
}

// candidates returns the contiguous run of stored extents that could possibly
// overlap or touch x, in ascending order. Stored extents are disjoint, so at
// most one extent starting before x can reach back to x's start; the run is a
// superset of the qualifying extents and callers apply their own overlap
// predicate.
func (r *RangeSet) candidates(x Extent) []Extent {
	var out []Extent
	r.set.DescendLessOrEqual(Extent{StartBlock: x.StartBlock}, func(it Extent) bool {
		if it.StartBlock == x.StartBlock {
			// Picked up by the ascend below.
			return true
		}
		if it.End() >= x.StartBlock {
			out = append(out, it)
		}
		return false
	})
	r.set.AscendGreaterOrEqual(Extent{StartBlock: x.StartBlock}, func(it Extent) bool {
		if it.StartBlock > x.End() {
			return false
		}
		out = append(out, it)
		return true
	})
	return out
}

// AddExtent adds the blocks of extent to the set, coalescing with any stored
// extents it overlaps (or touches, when merge-touching is enabled). Sparse or
// zero-length extents are ignored.
func (r *RangeSet) AddExtent(extent Extent) {
	if extent.IsEmpty() {
		return
	}
	merges := ExtentsOverlap
	if r.mergeTouching {
		merges = ExtentsOverlapOrTouch
	}

	var delBlocks uint64
	for _, it := range r.candidates(extent) {
		if !merges(it, extent) {
			continue
		}
		r.set.Delete(it)
		delBlocks += it.NumBlocks
		extent = UnionOverlappingExtents(extent, it)
	}
	r.set.ReplaceOrInsert(extent)
	r.blocks -= delBlocks
	r.blocks += extent.NumBlocks
}

// SubtractExtent removes the blocks of extent from the set, shrinking or
// splitting stored extents as needed. Sparse or zero-length extents are
// ignored. Subtract never merges across stored extents.
func (r *RangeSet) SubtractExtent(extent Extent) {
	if extent.IsEmpty() {
		return
	}
	var removed uint64
	for _, it := range r.candidates(extent) {
		if !ExtentsOverlap(it, extent) {
			continue
		}
		r.set.Delete(it)
		removed += it.NumBlocks
		if it.StartBlock < extent.StartBlock {
			head := ExtentForRange(it.StartBlock, extent.StartBlock-it.StartBlock)
			r.set.ReplaceOrInsert(head)
			removed -= head.NumBlocks
		}
		if it.End() > extent.End() {
			tail := ExtentForRange(extent.End(), it.End()-extent.End())
			r.set.ReplaceOrInsert(tail)
			removed -= tail.NumBlocks
		}
	}
	r.blocks -= removed
}

func (r *RangeSet) AddBlock(block uint64) {
	r.AddExtent(ExtentForRange(block, 1))
}

func (r *RangeSet) SubtractBlock(block uint64) {
	r.SubtractExtent(ExtentForRange(block, 1))
}

func (r *RangeSet) AddExtents(extents []Extent) {
	for _, e := range extents {
		r.AddExtent(e)
	}
}

func (r *RangeSet) SubtractExtents(extents []Extent) {
	for _, e := range extents {
		r.SubtractExtent(e)
	}
}

func (r *RangeSet) AddRanges(other *RangeSet) {
	r.AddExtents(other.Extents())
}

func (r *RangeSet) SubtractRanges(other *RangeSet) {
	r.SubtractExtents(other.Extents())
}

// AddExtentSeq adds every extent yielded by seq, in sequence order. It accepts
// any ordered source of extent records, e.g. an adapter over a decoded
// repeated message field.
func (r *RangeSet) AddExtentSeq(seq iter.Seq[Extent]) {
	for e := range seq {
		r.AddExtent(e)
	}
}

func (r *RangeSet) SubtractExtentSeq(seq iter.Seq[Extent]) {
	for e := range seq {
		r.SubtractExtent(e)
	}
}

// ContainsBlock reports whether the given block is covered by the set.
func (r *RangeSet) ContainsBlock(block uint64) bool {
	for _, it := range r.candidates(ExtentForRange(block, 1)) {
		if it.ContainsBlock(block) {
			return true
		}
	}
	return false
}

// OverlapsWithExtent reports whether any stored extent overlaps extent.
func (r *RangeSet) OverlapsWithExtent(extent Extent) bool {
	for _, it := range r.candidates(extent) {
		if ExtentsOverlap(it, extent) {
			return true
		}
	}
	return false
}

// IntersectingExtents returns the intersection of each stored extent with the
// given extent, in ascending order, skipping empty intersections.
func (r *RangeSet) IntersectingExtents(extent Extent) []Extent {
	var result []Extent
	for _, it := range r.candidates(extent) {
		if overlap := GetOverlapExtent(it, extent); !overlap.IsEmpty() {
			result = append(result, overlap)
		}
	}
	return result
}

// ExtentsForBlockCount returns the first count blocks of the set as extents in
// ascending order, truncating the final extent so the result covers exactly
// count blocks. Panics if count exceeds Blocks(); callers handing out block
// ranges must never receive a silently short answer.
func (r *RangeSet) ExtentsForBlockCount(count uint64) []Extent {
	if count == 0 {
		return nil
	}
	if count > r.blocks {
		panic(fmt.Sprintf("requested %d blocks from a set covering %d", count, r.blocks))
	}
	var out []Extent
	var outBlocks uint64
	r.set.Ascend(func(it Extent) bool {
		needed := count - outBlocks
		if it.NumBlocks >= needed {
			out = append(out, ExtentForRange(it.StartBlock, needed))
			outBlocks += needed
			return false
		}
		out = append(out, it)
		outBlocks += it.NumBlocks
		return true
	})
	return out
}

// Extents returns a copy of the stored extents in ascending order.
func (r *RangeSet) Extents() []Extent {
	out := make([]Extent, 0, r.set.Len())
	r.set.Ascend(func(it Extent) bool {
		out = append(out, it)
		return true
	})
	return out
}

// All returns an iterator over the stored extents in ascending order. The set
// must not be mutated during iteration.
func (r *RangeSet) All() iter.Seq[Extent] {
	return func(yield func(Extent) bool) {
		r.set.Ascend(func(it Extent) bool {
			return yield(it)
		})
	}
}

func (r *RangeSet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d blocks:", r.blocks)
	r.set.Ascend(func(it Extent) bool {
		sb.WriteByte(' ')
		sb.WriteString(it.String())
		return true
	})
	return sb.String()
}

// Dump writes the stored extents and the total block count to w, one extent
// per line. Diagnostic only; the format is not stable.
func (r *RangeSet) Dump(w io.Writer) {
	fmt.Fprintf(w, "RangeSet dump. blocks: %d\n", r.blocks)
	r.set.Ascend(func(it Extent) bool {
		fmt.Fprintf(w, "  %s\n", it)
		return true
	})
}
