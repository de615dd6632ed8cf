package blockindex

import (
	"io"
	"os"
	"sort"

	"github.com/genomicsio/featix/internal/genomics"
)

// Index holds the decoded block array for one contig and answers overlap
// queries against it.
type Index struct {
	blocks []IndexBlock
}

// ReadIndex decodes a per-contig index file.
func ReadIndex(r io.Reader) (*Index, error) {
	blocks, err := ReadBlocks(r)
	if err != nil {
		return nil, err
	}
	return &Index{blocks: blocks}, nil
}

// Blocks returns all blocks in the index, in the order they were emitted.
func (ix *Index) Blocks() []IndexBlock {
	return ix.blocks
}

// Find returns the blocks whose coordinate span overlaps the region.  Blocks
// are ordered by Start, so the search discards everything past the region end
// with a binary search and filters the remainder exactly.
func (ix *Index) Find(region genomics.Region) []IndexBlock {
	limit := len(ix.blocks)
	if region.End != 0 {
		limit = sort.Search(len(ix.blocks), func(i int) bool {
			return ix.blocks[i].Start > region.End
		})
	}
	var found []IndexBlock
	for _, blk := range ix.blocks[:limit] {
		if region.Overlaps(blk.Start, blk.End) {
			found = append(found, blk)
		}
	}
	return found
}

// RangeReader reads a byte span from a companion data file.
type RangeReader func(offset uint64, size uint32) (io.ReadCloser, error)

// FileRangeReader returns a RangeReader backed by the provided file.  The
// caller retains ownership of the file; the readers returned for individual
// ranges do not close it.
func FileRangeReader(f *os.File) RangeReader {
	return func(offset uint64, size uint32) (io.ReadCloser, error) {
		section := io.NewSectionReader(f, int64(offset), int64(size))
		return io.NopCloser(section), nil
	}
}

// ReadBlockData reads the bytes covered by blk using the provided reader.
func ReadBlockData(read RangeReader, blk IndexBlock) ([]byte, error) {
	rc, err := read(blk.Offset, blk.Size)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
