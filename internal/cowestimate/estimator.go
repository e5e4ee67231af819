package cowestimate

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	// cowOpSize is the on-disk overhead charged per COW operation.
	cowOpSize = 16
	// cowHeaderSize is the fixed overhead of an empty COW image.
	cowHeaderSize = 512
)

// SizeEstimator is a CowWriter that performs no I/O and instead accounts for
// the size a real writer would produce: data payloads are zstd-compressed to
// measure their stored size, raw blocks already emitted once are charged as
// dedup references, and every op carries a fixed header cost.
type SizeEstimator struct {
	blockSize uint64
	enc       *zstd.Encoder

	// xxhash64 of every distinct raw block emitted so far.
	seen map[uint64]struct{}

	dataBytes uint64
	opCount   uint64
	finalized bool
}

var _ CowWriter = (*SizeEstimator)(nil)

func NewSizeEstimator(blockSize uint64) (*SizeEstimator, error) {
	if blockSize == 0 {
		return nil, errors.New("block size must be positive")
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderCRC(true),
		zstd.WithEncoderConcurrency(2),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &SizeEstimator{
		blockSize: blockSize,
		enc:       enc,
		seen:      make(map[uint64]struct{}),
	}, nil
}

func (s *SizeEstimator) checkOpen() error {
	if s.finalized {
		return errors.New("estimator already finalized")
	}
	return nil
}

func (s *SizeEstimator) AddCopy(dstBlock, srcBlock, numBlocks uint64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	// Copy ops carry no data, one op per block.
	s.opCount += numBlocks
	return nil
}

func (s *SizeEstimator) AddXorBlocks(dstBlock uint64, data []byte, srcBlock, srcOffset uint64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if uint64(len(data))%s.blockSize != 0 {
		return fmt.Errorf("xor data length %d is not a multiple of block size %d", len(data), s.blockSize)
	}
	s.dataBytes += uint64(len(s.enc.EncodeAll(data, nil)))
	s.opCount += uint64(len(data)) / s.blockSize
	return nil
}

func (s *SizeEstimator) AddZeroBlocks(startBlock, numBlocks uint64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.opCount += numBlocks
	return nil
}

func (s *SizeEstimator) AddRawBlocks(startBlock uint64, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if uint64(len(data))%s.blockSize != 0 {
		return fmt.Errorf("raw data length %d is not a multiple of block size %d", len(data), s.blockSize)
	}
	for off := uint64(0); off < uint64(len(data)); off += s.blockSize {
		block := data[off : off+s.blockSize]
		s.opCount++
		sum := xxhash.Sum64(block)
		if _, ok := s.seen[sum]; ok {
			// A block with identical content was already stored; the writer
			// would emit a reference instead of the data.
			continue
		}
		s.seen[sum] = struct{}{}
		s.dataBytes += uint64(len(s.enc.EncodeAll(block, nil)))
	}
	return nil
}

func (s *SizeEstimator) AddLabel(label uint64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.opCount++
	return nil
}

func (s *SizeEstimator) AddSequenceData(blocks []uint64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.opCount++
	s.dataBytes += uint64(len(blocks)) * 8
	return nil
}

func (s *SizeEstimator) Finalize() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.finalized = true
	return s.enc.Close()
}

// SizeInfo returns the accumulated estimate.
func (s *SizeEstimator) SizeInfo() SizeInfo {
	return SizeInfo{
		CowSize: cowHeaderSize + s.opCount*cowOpSize + s.dataBytes,
		OpCount: s.opCount,
	}
}
