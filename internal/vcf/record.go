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
	"fmt"
	"strconv"
	"strings"
)

// Record is one parsed variant line.  Line is the 1-based ordinal of the
// record among the data lines of the file, not the file line number.
type Record struct {
	Line    int64
	Chrom   string
	Pos     uint64
	ID      string
	Ref     string
	Alts    []string
	Qual    *float64
	Filter  string
	Info    []InfoField
	Format  []string
	Samples [][]string
}

// InfoField is one semicolon-separated entry of the INFO column, in file
// order.  Flags carry no value.
type InfoField struct {
	Key      string
	Value    string
	HasValue bool
}

// Start returns the 0-based inclusive start of the variant.
func (r *Record) Start() uint64 { return r.Pos - 1 }

// End returns the 0-based exclusive end, covering the reference allele.
func (r *Record) End() uint64 { return r.Start() + uint64(len(r.Ref)) }

// ParseRecord parses one data line.  line is the record ordinal reported in
// errors and stored on the record.
func ParseRecord(text string, line int64) (*Record, error) {
	fields := strings.Split(text, "\t")
	if len(fields) < 8 {
		return nil, fmt.Errorf("record %d: has %d columns, want at least 8", line, len(fields))
	}

	pos, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || pos == 0 {
		return nil, fmt.Errorf("record %d: invalid POS %q", line, fields[1])
	}

	r := &Record{
		Line:   line,
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    fields[3],
		Alts:   strings.Split(fields[4], ","),
		Filter: fields[6],
	}

	if fields[5] != "." {
		qual, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid QUAL %q", line, fields[5])
		}
		r.Qual = &qual
	}

	if fields[7] != "." && fields[7] != "" {
		for _, item := range strings.Split(fields[7], ";") {
			key, value, ok := strings.Cut(item, "=")
			r.Info = append(r.Info, InfoField{Key: key, Value: value, HasValue: ok})
		}
	}

	if len(fields) > 9 {
		r.Format = strings.Split(fields[8], ":")
		for _, sample := range fields[9:] {
			r.Samples = append(r.Samples, strings.Split(sample, ":"))
		}
	}
	return r, nil
}
