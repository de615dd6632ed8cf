package fasta

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/genomicsio/featix/internal/binary"
)

// ReadDirectory decodes the contig directory written by Index.
func ReadDirectory(r io.Reader) ([]DirEntry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading contig directory: %v", err)
	}
	dec := binary.NewReader(raw)
	var entries []DirEntry
	for dec.Len() > 0 {
		var e DirEntry
		if e.Name, err = dec.String(); err != nil {
			return nil, fmt.Errorf("decoding contig directory: %v", err)
		}
		if e.Length, err = dec.Uint64(); err != nil {
			return nil, fmt.Errorf("decoding contig directory: %v", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Contig provides random access to one contig's chunked sequence.
type Contig struct {
	zr     *zip.ReadCloser
	chunks map[int]*zip.File
}

// OpenContig opens the chunk container for the given normalized contig name.
func OpenContig(dir, contig string) (*Contig, error) {
	zr, err := zip.OpenReader(filepath.Join(dir, contig+".zip"))
	if err != nil {
		return nil, fmt.Errorf("opening chunk container for contig %q: %v", contig, err)
	}
	chunks := make(map[int]*zip.File, len(zr.File))
	for _, f := range zr.File {
		index, err := strconv.Atoi(f.Name)
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("unexpected chunk entry %q for contig %q", f.Name, contig)
		}
		chunks[index] = f
	}
	return &Contig{zr: zr, chunks: chunks}, nil
}

// Close releases the underlying container.
func (c *Contig) Close() error {
	return c.zr.Close()
}

// ReadRange returns length sequence bytes starting at offset.  The chunk
// holding any offset is found in constant time from the chunk size.
func (c *Contig) ReadRange(offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	first := int(offset / ChunkSize)
	last := int((offset + length - 1) / ChunkSize)

	out := make([]byte, 0, length)
	for i := first; i <= last; i++ {
		chunk, err := c.readChunk(i)
		if err != nil {
			return nil, err
		}
		lo := uint64(0)
		if i == first {
			lo = offset % ChunkSize
		}
		hi := uint64(len(chunk))
		if rest := offset + length - uint64(i)*ChunkSize; rest < hi {
			hi = rest
		}
		if lo > uint64(len(chunk)) {
			return nil, fmt.Errorf("offset %d is past the end of chunk %d", offset, i)
		}
		out = append(out, chunk[lo:hi]...)
	}
	return out, nil
}

func (c *Contig) readChunk(index int) ([]byte, error) {
	f, ok := c.chunks[index]
	if !ok {
		return nil, fmt.Errorf("missing chunk %d", index)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening chunk %d: %v", index, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading chunk %d: %v", index, err)
	}
	return data, nil
}
