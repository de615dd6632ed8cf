// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blockindex implements the shared range-indexing algorithm: runs of
// position-sorted entries are grouped per contig into capacity-bounded
// blocks, each block recording the coordinate span it covers and the byte
// span its entries occupy in a companion data file.
package blockindex

import (
	"fmt"
	"io"

	"github.com/genomicsio/featix/internal/binary"
)

// MaxBlockItems is the maximum number of entries covered by one block.
const MaxBlockItems = 100

// EncodedBlockSize is the on-disk size of one IndexBlock record.
const EncodedBlockSize = 28

// IndexBlock describes a contiguous run of entries in the companion data
// file.  Start and End are the coordinate span covered by the run, Offset
// and Size its byte span.  Within one contig blocks are ordered by Start
// and their byte spans are disjoint and increasing.
type IndexBlock struct {
	Start  uint64
	End    uint64
	Offset uint64
	Size   uint32
}

// Builder converts a stream of per-contig-grouped, position-sorted entries
// into IndexBlocks while appending the entries' serialized bytes to a data
// writer.  Within one run entries must arrive sorted by (contig, start); an
// entry whose start decreases within the current contig is rejected with an
// error.  EndRun starts a fresh run for callers that sort in batches.
type Builder struct {
	data   io.Writer
	offset uint64

	maxItems int

	contig    string
	hasContig bool
	last      uint64

	blocks map[string][]IndexBlock
	order  []string
	open   bool
	count  int
}

// NewBuilder returns a Builder that appends entry bytes to data.
func NewBuilder(data io.Writer) *Builder {
	return &Builder{
		data:     data,
		maxItems: MaxBlockItems,
		blocks:   make(map[string][]IndexBlock),
	}
}

// Offset returns the number of bytes written to the data writer so far.
func (b *Builder) Offset() uint64 {
	return b.offset
}

// WriteRaw appends raw bytes to the data file without indexing them.  It is
// used for interleaved non-entry content such as track header lines.  The
// open block, if any, is closed first.
func (b *Builder) WriteRaw(p []byte) error {
	b.closeBlock()
	b.hasContig = false
	if _, err := b.data.Write(p); err != nil {
		return fmt.Errorf("writing raw data: %v", err)
	}
	b.offset += uint64(len(p))
	return nil
}

// Add appends one entry.  Reversed coordinates are swapped so that
// start <= end always holds in the index.
func (b *Builder) Add(contig string, start, end uint64, data []byte) error {
	if start > end {
		start, end = end, start
	}
	if !b.hasContig || contig != b.contig {
		b.closeBlock()
		b.contig = contig
		b.hasContig = true
	} else if start < b.last {
		return fmt.Errorf("entries for contig %q out of order: start %d after %d", contig, start, b.last)
	}
	b.last = start

	if _, err := b.data.Write(data); err != nil {
		return fmt.Errorf("writing entry for contig %q: %v", contig, err)
	}
	size := uint32(len(data))

	if b.open && b.count >= b.maxItems {
		b.closeBlock()
	}
	if !b.open {
		if _, seen := b.blocks[contig]; !seen {
			b.order = append(b.order, contig)
		}
		b.blocks[contig] = append(b.blocks[contig], IndexBlock{
			Start:  start,
			End:    end,
			Offset: b.offset,
			Size:   size,
		})
		b.open = true
		b.count = 1
	} else {
		blk := &b.blocks[contig][len(b.blocks[contig])-1]
		if end > blk.End {
			blk.End = end
		}
		blk.Size += size
		b.count++
	}
	b.offset += uint64(size)
	return nil
}

// EndRun closes the open block and forgets the current contig and position,
// so the next entry starts a new sorted run.  Callers that sort each batch
// independently call it at batch boundaries and re-sort the per-contig block
// lists from Flush before writing them out.
func (b *Builder) EndRun() {
	b.closeBlock()
	b.hasContig = false
}

func (b *Builder) closeBlock() {
	b.open = false
	b.count = 0
}

// Flush closes the open block and returns the accumulated per-contig block
// lists in the order contigs were first seen.  The Builder is left ready for
// further entries; the data offset keeps advancing across flushes.
func (b *Builder) Flush() ([]string, map[string][]IndexBlock) {
	b.closeBlock()
	b.hasContig = false
	contigs, blocks := b.order, b.blocks
	b.order = nil
	b.blocks = make(map[string][]IndexBlock)
	return contigs, blocks
}

// WriteBlocks writes blocks to w as a flat array of fixed-width records.
func WriteBlocks(w io.Writer, blocks []IndexBlock) error {
	var enc binary.Writer
	for _, blk := range blocks {
		enc.PutUint64(blk.Start)
		enc.PutUint64(blk.End)
		enc.PutUint64(blk.Offset)
		enc.PutUint32(blk.Size)
	}
	if _, err := enc.WriteTo(w); err != nil {
		return fmt.Errorf("writing %d blocks: %v", len(blocks), err)
	}
	return nil
}

// ReadBlocks reads a flat array of IndexBlock records from r.
func ReadBlocks(r io.Reader) ([]IndexBlock, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading block data: %v", err)
	}
	if len(raw)%EncodedBlockSize != 0 {
		return nil, fmt.Errorf("block data has %d trailing bytes", len(raw)%EncodedBlockSize)
	}
	dec := binary.NewReader(raw)
	blocks := make([]IndexBlock, 0, len(raw)/EncodedBlockSize)
	for dec.Len() > 0 {
		var blk IndexBlock
		if blk.Start, err = dec.Uint64(); err != nil {
			return nil, err
		}
		if blk.End, err = dec.Uint64(); err != nil {
			return nil, err
		}
		if blk.Offset, err = dec.Uint64(); err != nil {
			return nil, err
		}
		if blk.Size, err = dec.Uint32(); err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}
