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

// Package vcf converts VCF variant records into typed key/value documents
// for ingestion by a downstream search index.
package vcf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/genomicsio/featix/internal/textio"
)

// Info describes one INFO field declared in the header.
type Info struct {
	ID          string
	Number      string
	Type        string
	Description string
}

// multiValued reports whether the field may carry more than one value.  A
// Number of "0" marks a flag and "1" a single value; everything else
// (including the per-allele letters) is treated as a list.
func (info Info) multiValued() bool {
	return info.Number != "0" && info.Number != "1"
}

// Header holds the declarations read from the meta-information lines of a
// VCF file.
type Header struct {
	Infos   map[string]Info
	Samples []string
}

// ParseHeader consumes the meta-information lines from the scanner, up to
// and including the #CHROM column header.
func ParseHeader(s *textio.Scanner) (*Header, error) {
	h := &Header{Infos: make(map[string]Info)}
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.HasPrefix(line, "##"):
			if strings.HasPrefix(line, "##INFO=<") {
				info, err := parseInfoLine(line)
				if err != nil {
					return nil, fmt.Errorf("line %d: %v", s.Line(), err)
				}
				h.Infos[info.ID] = info
			}
		case strings.HasPrefix(line, "#CHROM"):
			columns := strings.Split(line[1:], "\t")
			if len(columns) > 9 {
				h.Samples = columns[9:]
			}
			return h, nil
		default:
			return nil, fmt.Errorf("line %d: unexpected line before #CHROM header: %q", s.Line(), line)
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	return nil, errors.New("missing #CHROM header line")
}

func parseInfoLine(line string) (Info, error) {
	body := strings.TrimPrefix(line, "##INFO=<")
	if !strings.HasSuffix(body, ">") {
		return Info{}, fmt.Errorf("malformed INFO declaration: %q", line)
	}
	body = strings.TrimSuffix(body, ">")

	var info Info
	for _, item := range splitInfoFields(body) {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		switch key {
		case "ID":
			info.ID = value
		case "Number":
			info.Number = value
		case "Type":
			info.Type = value
		case "Description":
			info.Description = strings.Trim(value, `"`)
		}
	}
	if info.ID == "" {
		return Info{}, fmt.Errorf("INFO declaration without an ID: %q", line)
	}
	return info, nil
}

// splitInfoFields splits the body of an INFO declaration on commas,
// honoring double-quoted values so descriptions may contain commas.
func splitInfoFields(body string) []string {
	var (
		items  []string
		start  int
		quoted bool
	)
	for i, r := range body {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			items = append(items, body[start:i])
			start = i + 1
		}
	}
	return append(items, body[start:])
}
