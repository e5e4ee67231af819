package extents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterExtents(t *testing.T) {
	excl := func(extents ...Extent) *RangeSet {
		r := NewRangeSet(true)
		r.AddExtents(extents)
		return r
	}

	testCases := []struct {
		name     string
		input    []Extent
		excl     *RangeSet
		expected []Extent
	}{
		{
			"interior exclusion splits",
			[]Extent{ExtentForRange(0, 10)},
			excl(ExtentForRange(3, 4)),
			[]Extent{ExtentForRange(0, 3), ExtentForRange(7, 3)},
		},
		{
			"leading edge trimmed",
			[]Extent{ExtentForRange(5, 10)},
			excl(ExtentForRange(0, 8)),
			[]Extent{ExtentForRange(8, 7)},
		},
		{
			"trailing edge trimmed",
			[]Extent{ExtentForRange(5, 10)},
			excl(ExtentForRange(12, 10)),
			[]Extent{ExtentForRange(5, 7)},
		},
		{
			"fully excluded",
			[]Extent{ExtentForRange(5, 10)},
			excl(ExtentForRange(0, 100)),
			nil,
		},
		{
			"no exclusions",
			[]Extent{ExtentForRange(5, 10)},
			excl(),
			[]Extent{ExtentForRange(5, 10)},
		},
		{
			"touching exclusion is ignored",
			[]Extent{ExtentForRange(5, 5)},
			excl(ExtentForRange(0, 5), ExtentForRange(10, 5)),
			[]Extent{ExtentForRange(5, 5)},
		},
		{
			"multiple exclusions per extent",
			[]Extent{ExtentForRange(0, 20)},
			excl(ExtentForRange(2, 2), ExtentForRange(8, 2), ExtentForRange(18, 5)),
			[]Extent{ExtentForRange(0, 2), ExtentForRange(4, 4), ExtentForRange(10, 8)},
		},
		{
			"input order preserved",
			[]Extent{ExtentForRange(0, 4), ExtentForRange(10, 4)},
			excl(ExtentForRange(2, 10)),
			[]Extent{ExtentForRange(0, 2), ExtentForRange(12, 2)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FilterExtents(tc.input, tc.excl))
		})
	}
}

// TestFilterExtents_Accounting checks that the filtered output covers exactly
// the input blocks minus the blocks shared with the exclude set.
func TestFilterExtents_Accounting(t *testing.T) {
	rng := rand.New(rand.NewSource(777))

	for trial := 0; trial < 50; trial++ {
		excl := NewRangeSet(true)
		for i := 0; i < 10; i++ {
			excl.AddExtent(ExtentForRange(uint64(rng.Intn(400)), uint64(rng.Intn(20))))
		}

		// Build a sorted, non-overlapping input sequence.
		var input []Extent
		next := uint64(0)
		for next < 400 {
			next += uint64(rng.Intn(20))
			num := uint64(rng.Intn(30) + 1)
			input = append(input, ExtentForRange(next, num))
			next += num
		}

		var shared uint64
		for _, e := range input {
			shared += BlocksInExtents(excl.IntersectingExtents(e))
		}

		out := FilterExtents(input, excl)
		require.Equal(t, BlocksInExtents(input)-shared, BlocksInExtents(out))

		// Nothing in the output may intersect the exclude set.
		for _, e := range out {
			require.False(t, excl.OverlapsWithExtent(e), "output %v overlaps exclude set", e)
		}
	}
}
