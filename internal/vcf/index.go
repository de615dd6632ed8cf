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

package vcf

import (
	"context"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/genomicsio/featix/internal/docindex"
	"github.com/genomicsio/featix/internal/textio"
)

// Index converts every record of a VCF stream and feeds the documents to
// the indexer.  from resumes an interrupted run: records with an ordinal
// at or below it are skipped.  Returns the normalized contig names seen.
func Index(ctx context.Context, src io.Reader, ix *docindex.Indexer, from int64, logger log.Logger) ([]string, error) {
	s := textio.NewScanner(src)
	header, err := ParseHeader(s)
	if err != nil {
		return nil, fmt.Errorf("parsing header: %v", err)
	}
	conv, err := NewConverter(header)
	if err != nil {
		return nil, fmt.Errorf("building schema: %v", err)
	}
	if from > 0 {
		level.Info(logger).Log("msg", "resuming", "from", from)
	}

	var (
		contigs []string
		seen    = make(map[string]bool)
		line    int64
	)
	for s.Scan() {
		text := s.Text()
		if text == "" {
			continue
		}
		line++
		if line <= from {
			continue
		}
		rec, err := ParseRecord(text, line)
		if err != nil {
			return nil, err
		}
		doc, err := conv.Convert(rec)
		if err != nil {
			return nil, err
		}
		contig := doc["contig_s"].(string)
		if !seen[contig] {
			seen[contig] = true
			contigs = append(contigs, contig)
		}
		if err := ix.Add(ctx, line, doc); err != nil {
			return nil, err
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %v", err)
	}
	if err := ix.Close(ctx); err != nil {
		return nil, err
	}
	return contigs, nil
}
