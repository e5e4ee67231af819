package cowestimate

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/garethgeorge/gootagen/internal/extents"
	"github.com/garethgeorge/gootagen/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Partition describes one partition of an update to estimate.
type Partition struct {
	Name string

	// Source is the pre-update image, required only when xor merge ops are
	// enabled. Target is the post-update image and is always required.
	Source io.ReaderAt
	Target io.ReaderAt

	BlockSize     uint64
	PartitionSize uint64

	Ops        []InstallOperation
	MergeOps   []MergeOperation
	XorEnabled bool
}

// WriteMergeSequence sends the block merge order to the writer: the
// destination blocks of every merge op, in op order.
func WriteMergeSequence(mergeOps []MergeOperation, w CowWriter) error {
	var blocks []uint64
	for _, op := range mergeOps {
		for b := op.DstExtent.StartBlock; b < op.DstExtent.End(); b++ {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return w.AddSequenceData(blocks)
}

// DryRun replays the update's operations against the writer without modifying
// anything: merge ops become copy or xor entries, zero ops become zero runs,
// and every target block not covered by any of those is read and emitted as
// raw data. Labels are emitted at the cadence a real install would use, since
// they contribute to the COW size.
func DryRun(source, target io.ReaderAt, ops []InstallOperation, mergeOps []MergeOperation,
	blockSize, partitionSize uint64, xorEnabled bool, w CowWriter) error {
	if target == nil {
		return errors.New("target image is required")
	}
	if err := WriteMergeSequence(mergeOps, w); err != nil {
		return fmt.Errorf("write merge sequence: %w", err)
	}

	visited := extents.NewRangeSet(true)
	for _, op := range mergeOps {
		switch op.Type {
		case CowCopy:
			visited.AddExtent(op.DstExtent)
			if err := w.AddCopy(op.DstExtent.StartBlock, op.SrcExtent.StartBlock, op.DstExtent.NumBlocks); err != nil {
				return fmt.Errorf("add copy for %s: %w", op.DstExtent, err)
			}
		case CowXor:
			if !xorEnabled {
				break
			}
			if source == nil {
				return errors.New("source image is required for xor merge ops")
			}
			visited.AddExtent(op.DstExtent)
			// The dst extent governs the read length; with a nonzero
			// SrcOffset the source extent is one block longer than dst and
			// reading by its length would run past what we need.
			oldData := make([]byte, op.DstExtent.NumBlocks*blockSize)
			srcOff := int64(op.SrcExtent.StartBlock*blockSize + op.SrcOffset)
			if _, err := source.ReadAt(oldData, srcOff); err != nil {
				return fmt.Errorf("read source at %s: %w", op.SrcExtent, err)
			}
			newData := make([]byte, op.DstExtent.NumBlocks*blockSize)
			if _, err := target.ReadAt(newData, int64(op.DstExtent.StartBlock*blockSize)); err != nil {
				return fmt.Errorf("read target at %s: %w", op.DstExtent, err)
			}
			for i := range newData {
				newData[i] ^= oldData[i]
			}
			if err := w.AddXorBlocks(op.DstExtent.StartBlock, newData, op.SrcExtent.StartBlock, op.SrcOffset); err != nil {
				return fmt.Errorf("add xor blocks for %s: %w", op.DstExtent, err)
			}
		}
		if err := w.AddLabel(0); err != nil {
			return fmt.Errorf("add label: %w", err)
		}
	}

	for _, op := range ops {
		if err := w.AddLabel(0); err != nil {
			return fmt.Errorf("add label: %w", err)
		}
		if err := op.VerifyData(); err != nil {
			return err
		}
		if op.Type != Zero {
			continue
		}
		for _, ext := range op.DstExtents {
			visited.AddExtent(ext)
			if err := w.AddZeroBlocks(ext.StartBlock, ext.NumBlocks); err != nil {
				return fmt.Errorf("add zero blocks for %s: %w", ext, err)
			}
		}
	}
	if err := w.AddLabel(0); err != nil {
		return fmt.Errorf("add label: %w", err)
	}

	// Whatever the merge and zero ops did not cover is stored verbatim.
	lastBlock := partitionSize / blockSize
	unvisited := extents.FilterExtents([]extents.Extent{extents.ExtentForRange(0, lastBlock)}, visited)
	for _, ext := range unvisited {
		data := make([]byte, ext.NumBlocks*blockSize)
		if _, err := target.ReadAt(data, int64(ext.StartBlock*blockSize)); err != nil {
			return fmt.Errorf("read target at %s: %w", ext, err)
		}
		if err := w.AddRawBlocks(ext.StartBlock, data); err != nil {
			return fmt.Errorf("add raw blocks for %s: %w", ext, err)
		}
		if err := w.AddLabel(0); err != nil {
			return fmt.Errorf("add label: %w", err)
		}
	}

	return w.Finalize()
}

// Estimate runs a dry run of the partition's update against a SizeEstimator
// and returns the resulting size info.
func Estimate(p Partition) (SizeInfo, error) {
	est, err := NewSizeEstimator(p.BlockSize)
	if err != nil {
		return SizeInfo{}, err
	}
	if err := DryRun(p.Source, p.Target, p.Ops, p.MergeOps, p.BlockSize, p.PartitionSize, p.XorEnabled, est); err != nil {
		return SizeInfo{}, fmt.Errorf("cow dry run for %q: %w", p.Name, err)
	}
	return est.SizeInfo(), nil
}

// EstimateAll estimates every partition concurrently and returns the size
// info keyed by partition name.
func EstimateAll(parts []Partition, prog progress.Tracker) (map[string]SizeInfo, error) {
	var mu sync.Mutex
	results := make(map[string]SizeInfo, len(parts))

	prog.SetMessage("estimating COW sizes")
	prog.SetTotal(int64(len(parts)))
	prog.SetDone(0)

	var eg errgroup.Group
	for _, p := range parts {
		eg.Go(func() error {
			info, err := Estimate(p)
			if err != nil {
				prog.SetError(err)
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[p.Name] = info
			prog.SetDone(len(results))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("estimate cow sizes: %w", err)
	}
	prog.MarkFinished()
	return results, nil
}
