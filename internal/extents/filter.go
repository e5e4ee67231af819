package extents

// FilterExtents returns the input extents with every block covered by excl
// removed, splitting extents around excluded regions as needed. The input must
// be in ascending start order; the output preserves that order and pieces cut
// from the same input extent are never reordered.
func FilterExtents(extents []Extent, excl *RangeSet) []Extent {
	var result []Extent
	for _, extent := range extents {
		for _, it := range excl.candidates(extent) {
			if !ExtentsOverlap(extent, it) {
				continue
			}
			if it.StartBlock <= extent.StartBlock {
				// The excluded region covers the leading edge; advance past it.
				cut := it.End() - extent.StartBlock
				if cut >= extent.NumBlocks {
					extent.NumBlocks = 0
					break
				}
				extent = ExtentForRange(extent.StartBlock+cut, extent.NumBlocks-cut)
			} else {
				// The excluded region is interior or trailing; emit the piece
				// before it and continue with whatever follows it.
				result = append(result, ExtentForRange(extent.StartBlock, it.StartBlock-extent.StartBlock))
				newStart := it.End()
				oldEnd := extent.End()
				if newStart >= oldEnd {
					extent.NumBlocks = 0
					break
				}
				extent = ExtentForRange(newStart, oldEnd-newStart)
			}
		}
		if extent.NumBlocks > 0 {
			result = append(result, extent)
		}
	}
	return result
}
