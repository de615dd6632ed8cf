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

// Package wig indexes WIG step tracks.  Steps are encoded as typed binary
// records in a single data file, with per-contig block indexes enabling
// range lookups.
package wig

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

	"github.com/genomicsio/featix/internal/binary"
	"github.com/genomicsio/featix/internal/blockindex"
	"github.com/genomicsio/featix/internal/genomics"
	"github.com/genomicsio/featix/internal/session"
	"github.com/genomicsio/featix/internal/textio"
)

// FormatVersion identifies the on-disk layout produced by Index.
const FormatVersion = "1"

// Artifact names inside a build directory.
const (
	DataFile   = "wig.data"
	TracksFile = "tracks.txt"
	IndexDir   = "contig.cache"
)

// Kind tags the two step record layouts.  The values are part of the binary
// format.
type Kind uint8

const (
	// VariableStep records carry explicit (position, value) pairs.
	VariableStep Kind = 1
	// FixedStep records carry bare values; positions are implied by the
	// start coordinate and step width.
	FixedStep Kind = 2
)

// readLimit is the amount of source text accumulated before pending steps
// are flushed to the data file, bounding memory on huge tracks.
const readLimit = 10 << 20

// Step is one decoded run of positioned values.  Exactly one of the two
// layouts applies depending on Kind.
type Step struct {
	Kind   Kind
	Contig string
	Track  uint32
	Span   uint32

	// FixedStep layout: a 0-based start coordinate and a step width.
	Start uint64
	Step  uint32

	// Positions holds the 0-based coordinates of VariableStep values.
	Positions []uint64
	Values    []float32
}

// StartPos returns the 0-based coordinate of the first value.
func (s *Step) StartPos() uint64 {
	if s.Kind == FixedStep || len(s.Positions) == 0 {
		return s.Start
	}
	return s.Positions[0]
}

// EndPos returns the 0-based coordinate one past the last covered base.
func (s *Step) EndPos() uint64 {
	span := uint64(s.Span)
	if s.Kind == FixedStep {
		if len(s.Values) == 0 {
			return s.Start + span
		}
		return s.Start + uint64(s.Step)*uint64(len(s.Values)-1) + span
	}
	if len(s.Positions) == 0 {
		return span
	}
	return s.Positions[len(s.Positions)-1] + span
}

func (s *Step) encode(enc *binary.Writer) {
	enc.PutUint8(uint8(s.Kind))
	enc.PutUint32(s.Span)
	enc.PutUint32(s.Track)
	enc.PutUint32(uint32(len(s.Values)))
	switch s.Kind {
	case VariableStep:
		for i, pos := range s.Positions {
			enc.PutUint64(pos)
			enc.PutFloat32(s.Values[i])
		}
	case FixedStep:
		enc.PutUint64(s.Start)
		enc.PutUint32(s.Step)
		for _, v := range s.Values {
			enc.PutFloat32(v)
		}
	}
}

// Index reads a WIG file from src and writes the build artifacts into the
// session's working directory.
func Index(src io.Reader, sess *session.Session, logger log.Logger) error {
	return index(src, sess, logger, readLimit)
}

func index(src io.Reader, sess *session.Session, logger log.Logger, limit int) error {
	data, err := sess.Create(DataFile)
	if err != nil {
		return err
	}
	defer data.Close()
	buffered := bufio.NewWriter(data)
	builder := blockindex.NewBuilder(buffered)

	var (
		tracks  []string
		pending []*Step
		budget  = limit
	)

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

		budget -= len(line)
		if budget <= 0 {
			// Flush everything but the step still accumulating so a step's
			// data is never split across two batches.
			if len(pending) > 1 {
				if err := dumpSteps(builder, pending[:len(pending)-1]); err != nil {
					return err
				}
				pending = pending[len(pending)-1:]
			}
			budget = limit
		}

		switch {
		case strings.HasPrefix(line, "track"):
			tracks = append(tracks, line)
		case strings.HasPrefix(line, "variableStep"), strings.HasPrefix(line, "fixedStep"):
			if len(tracks) == 0 {
				tracks = append(tracks, "")
			}
			step, err := parseStepHeader(line, uint32(len(tracks)-1), s.Line())
			if err != nil {
				return err
			}
			pending = append(pending, step)
		default:
			if len(pending) == 0 {
				return fmt.Errorf("line %d: data line outside of a step declaration: %q", s.Line(), line)
			}
			if err := pending[len(pending)-1].update(line, s.Line()); err != nil {
				return err
			}
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("reading source: %v", err)
	}

	if err := dumpSteps(builder, pending); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flushing data file: %v", err)
	}
	if err := data.Close(); err != nil {
		return fmt.Errorf("closing data file: %v", err)
	}

	if err := writeIndexFiles(sess, builder); err != nil {
		return err
	}
	return writeTracksFile(sess, tracks)
}

// dumpSteps encodes a batch of steps through the block index builder.  The
// batch is sorted by (contig, start) so the builder sees per-contig-grouped,
// position-sorted entries.  Each batch is a separate builder run: a later
// batch may revisit a contig below coordinates an earlier batch already
// covered, and writeIndexFiles re-sorts the block lists afterwards.
func dumpSteps(builder *blockindex.Builder, steps []*Step) error {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Contig != steps[j].Contig {
			return steps[i].Contig < steps[j].Contig
		}
		return steps[i].StartPos() < steps[j].StartPos()
	})
	var enc binary.Writer
	for _, step := range steps {
		enc.Reset()
		step.encode(&enc)
		if err := builder.Add(step.Contig, step.StartPos(), step.EndPos(), enc.Bytes()); err != nil {
			return err
		}
	}
	builder.EndRun()
	return nil
}

func writeIndexFiles(sess *session.Session, builder *blockindex.Builder) error {
	dir, err := sess.Mkdir(IndexDir)
	if err != nil {
		return err
	}
	contigs, blocks := builder.Flush()
	for _, contig := range contigs {
		list := blocks[contig]
		// Steps flushed in separate batches may interleave contigs in the
		// data file; the block list is re-sorted by coordinate so readers
		// can binary-search it.
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		f, err := os.Create(filepath.Join(dir, contig))
		if err != nil {
			return fmt.Errorf("creating index file for contig %q: %v", contig, err)
		}
		if err := blockindex.WriteBlocks(f, list); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing index file for contig %q: %v", contig, err)
		}
	}
	return nil
}

func writeTracksFile(sess *session.Session, tracks []string) error {
	f, err := sess.Create(TracksFile)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, track := range tracks {
		if _, err := fmt.Fprintln(f, track); err != nil {
			return fmt.Errorf("writing tracks file: %v", err)
		}
	}
	return f.Close()
}

func parseStepHeader(line string, track uint32, lineNo int) (*Step, error) {
	params := parseParams(line)

	chrom := params["chrom"]
	if chrom == "" {
		return nil, fmt.Errorf("line %d: no field %q in declaration: %q", lineNo, "chrom", line)
	}
	span, err := parsePositive(params, "span", 1)
	if err != nil {
		return nil, fmt.Errorf("line %d: %v", lineNo, err)
	}

	step := &Step{
		Contig: genomics.NormalizeContig(chrom),
		Track:  track,
		Span:   span,
	}
	if strings.HasPrefix(line, "variableStep") {
		step.Kind = VariableStep
		return step, nil
	}

	step.Kind = FixedStep
	start, err := parseRequiredPositive(params, "start", line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %v", lineNo, err)
	}
	width, err := parseRequiredPositive(params, "step", line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %v", lineNo, err)
	}
	// Headers are 1-based inclusive; coordinates are stored 0-based.
	step.Start = uint64(start) - 1
	step.Step = width
	return step, nil
}

func (s *Step) update(line string, lineNo int) error {
	switch s.Kind {
	case VariableStep:
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("line %d: line should have two fields: %q", lineNo, line)
		}
		pos, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil || pos < 1 {
			return fmt.Errorf("line %d: cannot parse value %q to a position", lineNo, fields[0])
		}
		pos-- // 1-based to 0-based
		if len(s.Positions) > 0 && pos < s.Positions[len(s.Positions)-1] {
			return fmt.Errorf("line %d: all positions must be in ascending order", lineNo)
		}
		value, err := parseFloat(fields[1])
		if err != nil {
			return fmt.Errorf("line %d: %v", lineNo, err)
		}
		s.Positions = append(s.Positions, pos)
		s.Values = append(s.Values, value)
	case FixedStep:
		value, err := parseFloat(line)
		if err != nil {
			return fmt.Errorf("line %d: %v", lineNo, err)
		}
		s.Values = append(s.Values, value)
	}
	return nil
}

func parseFloat(text string) (float32, error) {
	v, err := strconv.ParseFloat(text, 32)
	if err != nil {
		return 0, fmt.Errorf("cannot parse value %q to float", text)
	}
	return float32(v), nil
}

func parsePositive(params map[string]string, key string, fallback uint32) (uint32, error) {
	text, ok := params[key]
	if !ok {
		return fallback, nil
	}
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s value should be a positive integer, got: %q", key, text)
	}
	return uint32(v), nil
}

func parseRequiredPositive(params map[string]string, key, line string) (uint32, error) {
	if _, ok := params[key]; !ok {
		return 0, fmt.Errorf("no field %q in declaration: %q", key, line)
	}
	return parsePositive(params, key, 0)
}

// parseParams splits a declaration line into key=value fields, honoring
// double-quoted values so track names may contain spaces.
func parseParams(line string) map[string]string {
	params := make(map[string]string)
	for _, item := range splitQuoted(line) {
		if key, value, ok := strings.Cut(item, "="); ok {
			params[key] = value
		}
	}
	return params
}

func splitQuoted(line string) []string {
	var (
		items   []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if current.Len() > 0 {
			items = append(items, current.String())
			current.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return items
}
