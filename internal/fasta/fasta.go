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

// Package fasta persists contig sequences as fixed-capacity chunks so that
// an arbitrary sub-range can be retrieved without loading a whole contig.
// Each contig gets one zip container whose entries are named by ascending
// chunk index; a directory file maps contig names to total lengths.
package fasta

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/genomicsio/featix/internal/binary"
	"github.com/genomicsio/featix/internal/genomics"
	"github.com/genomicsio/featix/internal/session"
	"github.com/genomicsio/featix/internal/textio"
)

// ChunkSize is the maximum number of sequence bytes stored in one chunk.
// The 5th nucleotide of a contig is in chunk "0", the 10005th in chunk "1",
// and so on.
const ChunkSize = 10000

// FormatVersion identifies the on-disk layout produced by Index.
const FormatVersion = "2"

// Artifact names inside a build directory.
const (
	DirectoryFile = "fasta.data"
	ChunkDir      = "fasta.cache"
)

// DirEntry records the total sequence length of one contig.
type DirEntry struct {
	Name   string
	Length uint64
}

// dumper writes a contig's sequence into numbered chunk entries of a zip
// container.  The container is opened lazily so contigs with no sequence
// produce no chunk files at all.
type dumper struct {
	dir    string
	contig string

	file *os.File
	zw   *zip.Writer

	// buf accumulates sequence bytes; off is the read cursor so that
	// flushing a chunk does not re-slice the buffer.
	buf []byte
	off int

	index int
}

func (d *dumper) begin(contig string) error {
	if err := d.flush(); err != nil {
		return err
	}
	d.contig = contig
	return nil
}

func (d *dumper) open() error {
	if d.zw != nil {
		return nil
	}
	f, err := os.Create(filepath.Join(d.dir, d.contig+".zip"))
	if err != nil {
		return fmt.Errorf("creating chunk container for contig %q: %v", d.contig, err)
	}
	d.file = f
	d.zw = zip.NewWriter(f)
	d.zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	return nil
}

func (d *dumper) add(seq string) error {
	d.buf = append(d.buf, seq...)
	for len(d.buf)-d.off >= ChunkSize {
		if err := d.writeChunk(ChunkSize); err != nil {
			return err
		}
	}
	if d.off > 0 {
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	return nil
}

func (d *dumper) writeChunk(n int) error {
	if err := d.open(); err != nil {
		return err
	}
	w, err := d.zw.CreateHeader(&zip.FileHeader{
		Name:   strconv.Itoa(d.index),
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("creating chunk %d for contig %q: %v", d.index, d.contig, err)
	}
	if _, err := w.Write(d.buf[d.off : d.off+n]); err != nil {
		return fmt.Errorf("writing chunk %d for contig %q: %v", d.index, d.contig, err)
	}
	d.index++
	d.off += n
	return nil
}

// flush writes any remaining partial chunk and closes the current container.
func (d *dumper) flush() error {
	if rest := len(d.buf) - d.off; rest > 0 {
		if err := d.writeChunk(rest); err != nil {
			return err
		}
	}
	d.buf = d.buf[:0]
	d.off = 0
	d.index = 0
	if d.zw != nil {
		if err := d.zw.Close(); err != nil {
			return fmt.Errorf("closing chunk container for contig %q: %v", d.contig, err)
		}
		if err := d.file.Close(); err != nil {
			return fmt.Errorf("closing chunk container for contig %q: %v", d.contig, err)
		}
		d.zw, d.file = nil, nil
	}
	return nil
}

// Index reads FASTA sequence data from each source in turn and writes the
// chunk containers and contig directory into the session's working
// directory.  It returns the raw (unnormalized) contig names seen, which
// callers use to cross-check annotation inputs.
func Index(sess *session.Session, srcs ...io.Reader) ([]string, error) {
	chunkDir, err := sess.Mkdir(ChunkDir)
	if err != nil {
		return nil, err
	}
	d := &dumper{dir: chunkDir}
	var entries []*DirEntry

	for _, src := range srcs {
		br := bufio.NewReader(src)
		first, err := br.Peek(1)
		if err != nil || first[0] != '>' {
			return nil, fmt.Errorf("input is not a sequence file (missing '>' header)")
		}

		s := textio.NewScanner(br)
		for s.Scan() {
			line := s.Text()
			if strings.HasPrefix(line, ">") {
				header := strings.Fields(line[1:])
				if len(header) == 0 {
					return nil, fmt.Errorf("line %d: sequence header has no name", s.Line())
				}
				entries = append(entries, &DirEntry{Name: header[0]})
				if err := d.begin(genomics.NormalizeContig(header[0])); err != nil {
					return nil, err
				}
				continue
			}
			seq := strings.TrimSpace(line)
			entries[len(entries)-1].Length += uint64(len(seq))
			if err := d.add(seq); err != nil {
				return nil, err
			}
		}
		if err := s.Err(); err != nil {
			return nil, fmt.Errorf("reading sequence data: %v", err)
		}
	}
	if err := d.flush(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if err := writeDirectory(sess, entries); err != nil {
		return nil, err
	}

	contigs := make([]string, len(entries))
	for i, e := range entries {
		contigs[i] = e.Name
	}
	return contigs, nil
}

func writeDirectory(sess *session.Session, entries []*DirEntry) error {
	var enc binary.Writer
	for _, e := range entries {
		enc.PutString(e.Name)
		enc.PutUint64(e.Length)
	}
	f, err := sess.Create(DirectoryFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := enc.WriteTo(f); err != nil {
		return fmt.Errorf("writing contig directory: %v", err)
	}
	return f.Close()
}
