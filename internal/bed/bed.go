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

// Package bed indexes BED interval files.  The build writes a sorted copy of
// the feature data, a tracks file, and one block index per track and contig
// enabling range lookups without scanning the data file.
package bed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/genomicsio/featix/internal/blockindex"
	"github.com/genomicsio/featix/internal/genomics"
	"github.com/genomicsio/featix/internal/session"
	"github.com/genomicsio/featix/internal/textio"
)

// FormatVersion identifies the on-disk layout produced by Index.
const FormatVersion = "1"

// Artifact names inside a build directory.
const (
	DataFile   = "file.bed"
	TracksFile = "tracks.txt"
	IndexDir   = "index.cache"
)

type feature struct {
	fields     []string
	start, end uint64
}

func (f *feature) contig() string {
	return f.fields[0]
}

type track struct {
	header     string
	fieldCount int
	features   []*feature
}

// Index reads a BED file from src and writes the build artifacts into the
// session's working directory.  A malformed line aborts the build with an
// error naming the line and the reason; the caller discards the session and
// may retry from scratch.
func Index(src io.Reader, sess *session.Session, logger log.Logger) error {
	tracks, err := parse(src, logger)
	if err != nil {
		return err
	}

	for _, tr := range tracks {
		// The block builder requires entries sorted by (contig, start).
		sort.SliceStable(tr.features, func(i, j int) bool {
			a, b := tr.features[i], tr.features[j]
			if a.contig() != b.contig() {
				return a.contig() < b.contig()
			}
			return a.start < b.start
		})
	}

	indexDir, err := sess.Mkdir(IndexDir)
	if err != nil {
		return err
	}
	data, err := sess.Create(DataFile)
	if err != nil {
		return err
	}
	defer data.Close()
	buffered := bufio.NewWriter(data)
	builder := blockindex.NewBuilder(buffered)

	for ordinal, tr := range tracks {
		if err := builder.WriteRaw([]byte(tr.header + "\n")); err != nil {
			return err
		}
		for _, f := range tr.features {
			line := strings.Join(f.fields, "\t") + "\n"
			if err := builder.Add(f.contig(), f.start, f.end, []byte(line)); err != nil {
				return err
			}
		}
		contigs, blocks := builder.Flush()
		for _, contig := range contigs {
			if err := writeIndexFile(indexDir, ordinal, contig, blocks[contig]); err != nil {
				return err
			}
		}
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flushing data file: %v", err)
	}
	if err := data.Close(); err != nil {
		return fmt.Errorf("closing data file: %v", err)
	}

	return writeTracksFile(sess, tracks)
}

func parse(src io.Reader, logger log.Logger) ([]*track, error) {
	var tracks []*track
	var current *track

	open := func(header string) {
		current = &track{header: header, fieldCount: -1}
		tracks = append(tracks, current)
	}

	s := textio.NewScanner(src)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "browser") {
			level.Debug(logger).Log("msg", "skipping browser directive", "line", s.Line())
			continue
		}
		if strings.HasPrefix(line, "track") {
			open(line)
			continue
		}
		if current == nil {
			// Data before any header: synthesize an implicit track so the
			// features are not silently dropped.
			open("track")
		}

		fields := strings.Split(line, "\t")
		if current.fieldCount == -1 {
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: not enough fields in feature: %q", s.Line(), line)
			}
			current.fieldCount = len(fields)
		} else if len(fields) != current.fieldCount {
			return nil, fmt.Errorf("line %d: feature has %d fields, previous features in track have %d",
				s.Line(), len(fields), current.fieldCount)
		}

		fields[0] = genomics.NormalizeContig(fields[0])
		if len(fields) >= 12 {
			// Files in the wild carry trailing commas in the block lists.
			fields[10] = strings.Trim(fields[10], ", ")
			fields[11] = strings.Trim(fields[11], ", ")
		}
		if err := validateFeature(fields); err != nil {
			return nil, fmt.Errorf("line %d: %v: %q", s.Line(), err, line)
		}

		start, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: field start: %q is not a number", s.Line(), fields[1])
		}
		end, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: field end: %q is not a number", s.Line(), fields[2])
		}
		if start > end {
			start, end = end, start
		}
		current.features = append(current.features, &feature{fields: fields, start: start, end: end})
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading source: %v", err)
	}
	return tracks, nil
}

func writeIndexFile(dir string, ordinal int, contig string, blocks []blockindex.IndexBlock) error {
	f, err := os.Create(IndexPath(dir, ordinal, contig))
	if err != nil {
		return fmt.Errorf("creating index file for track %d contig %q: %v", ordinal, contig, err)
	}
	defer f.Close()
	if err := blockindex.WriteBlocks(f, blocks); err != nil {
		return err
	}
	return f.Close()
}

func writeTracksFile(sess *session.Session, tracks []*track) error {
	f, err := sess.Create(TracksFile)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, tr := range tracks {
		if _, err := fmt.Fprintln(f, tr.header); err != nil {
			return fmt.Errorf("writing tracks file: %v", err)
		}
	}
	return f.Close()
}

// IndexPath returns the block index artifact for the given track ordinal and
// contig inside an index directory.
func IndexPath(dir string, ordinal int, contig string) string {
	return filepath.Join(dir, fmt.Sprintf("%d.%s.index", ordinal, contig))
}
