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
	"regexp"
	"strconv"
	"strings"

	"github.com/genomicsio/featix/internal/docindex"
	"github.com/genomicsio/featix/internal/genomics"
)

// IndexingVersion identifies the document layout produced by Converter.
// Documents written under different versions are not interchangeable.
const IndexingVersion = "splitEffAnnotations"

// Typed key suffixes follow the dynamic-field convention of the search
// backend: _s string, _l long, _f float, _b bool, a doubled letter for
// lists, _ci case-insensitive, _ns non-stored.
var baseSchema = map[string]string{
	"CHROM":     "contig_s",
	"LOCATION":  "location_iv",
	"START":     "start_l",
	"REF":       "ref_s_ci",
	"QUAL":      "qual_f",
	"ID":        "id_s_ci",
	"FILTER":    "filter_ss_ci",
	"ALT":       "alt_ss_ci",
	"ALT_COUNT": "alt_len_i_ns",
	"TYPE":      "type_ss_ci",
}

// effFields are the components of a snpEff EFF annotation, in the order
// they appear inside the parentheses (the effect name itself comes first).
var effFields = []string{
	"Effect",
	"Effect_Impact",
	"Functional_Class",
	"Codon_Change",
	"Amino_Acid_Change",
	"Amino_Acid_length",
	"Gene_Name",
	"Transcript_BioType",
	"Gene_Coding",
	"Transcript_ID",
	"Exon_Rank",
	"Genotype_Number",
	"ERRORS",
	"WARNINGS",
}

var (
	effSplitRe = regexp.MustCompile(`\(|\)|\|`)
	rangeRe    = regexp.MustCompile(`\(Range:([0-9]*\.?[0-9]*)-([0-9]*\.?[0-9]*)\)`)
)

// rangeLimit bounds the values of a numeric INFO field, as declared in its
// description.  A nil end is unbounded.
type rangeLimit struct {
	low, high *float64
}

func (l rangeLimit) contains(v float64) bool {
	if l.low != nil && v < *l.low {
		return false
	}
	if l.high != nil && v > *l.high {
		return false
	}
	return true
}

// Converter maps parsed records to flat documents using a schema derived
// from the file header.  Fields absent from the header get their typed key
// inferred from the first value seen and remembered for later records.
type Converter struct {
	header *Header
	schema map[string]string
	ranges map[string]rangeLimit
}

// NewConverter builds the typed-key schema for a file with the given
// header.
func NewConverter(h *Header) (*Converter, error) {
	c := &Converter{
		header: h,
		schema: make(map[string]string, len(baseSchema)+len(h.Infos)),
		ranges: make(map[string]rangeLimit),
	}
	for key, typed := range baseSchema {
		c.schema[key] = typed
	}
	for id, info := range h.Infos {
		var suffix string
		switch info.Type {
		case "Float":
			suffix = "f"
		case "Integer":
			suffix = "l"
		case "Character", "String":
			suffix = "s"
		case "Flag":
			suffix = "b"
		default:
			return nil, fmt.Errorf("unexpected type %q for INFO field %s", info.Type, id)
		}
		if info.multiValued() {
			suffix += "s"
		}
		c.schema[id] = "info_" + id + "_" + suffix

		if m := rangeRe.FindStringSubmatch(info.Description); m != nil {
			var limit rangeLimit
			if m[1] != "" {
				v, err := strconv.ParseFloat(m[1], 64)
				if err == nil {
					limit.low = &v
				}
			}
			if m[2] != "" {
				v, err := strconv.ParseFloat(m[2], 64)
				if err == nil {
					limit.high = &v
				}
			}
			c.ranges[id] = limit
		}
	}
	return c, nil
}

// Convert builds the document for one record.
func (c *Converter) Convert(r *Record) (docindex.Document, error) {
	doc := docindex.Document{
		"__id__":      strconv.FormatInt(r.Line, 10),
		"line_l":      r.Line,
		"contig_s":    genomics.NormalizeContig(r.Chrom),
		"location_iv": fmt.Sprintf("%d %d", r.Start(), r.End()),
		"start_l":     int64(r.Start()),
		"ref_s_ci":    r.Ref,
	}
	if r.Qual != nil {
		doc["qual_f"] = *r.Qual
	}
	if r.ID != "." {
		doc["id_s_ci"] = r.ID
	}
	if r.Filter != "." && r.Filter != "" {
		doc["filter_ss_ci"] = toValueList(strings.Split(r.Filter, ";"))
	}

	alts := make([]interface{}, len(r.Alts))
	types := make([]interface{}, len(r.Alts))
	for i, alt := range r.Alts {
		alts[i] = alt
		types[i] = variantType(r.Ref, alt)
	}
	doc["alt_ss_ci"] = alts
	doc["alt_len_i_ns"] = int64(len(r.Alts))
	doc["type_ss_ci"] = types

	for _, field := range r.Info {
		if err := c.convertInfo(doc, r, field); err != nil {
			return nil, err
		}
	}
	c.convertSamples(doc, r)
	return doc, nil
}

func (c *Converter) convertInfo(doc docindex.Document, r *Record, field InfoField) error {
	value, err := c.infoValue(r, field)
	if err != nil {
		return err
	}

	typed, ok := c.schema[field.Key]
	if !ok {
		typed = inferTypedKey(field.Key, value)
		c.schema[field.Key] = typed
	}

	if typed == "info_EFF_ss" {
		if err := c.splitEffAnnotations(doc, r, value); err != nil {
			return err
		}
	}
	doc[typed] = value

	if list, ok := value.([]interface{}); ok && len(list) > 0 {
		c.aggregate(doc, field.Key, list)
	}
	return nil
}

// infoValue parses the raw INFO value according to the declared type, or
// infers one for fields missing from the header.
func (c *Converter) infoValue(r *Record, field InfoField) (interface{}, error) {
	info, declared := c.header.Infos[field.Key]
	if !field.HasValue || (declared && info.Type == "Flag") {
		return true, nil
	}

	parts := strings.Split(field.Value, ",")
	multi := len(parts) > 1
	if declared {
		multi = info.multiValued()
	}

	scalar := func(s string) (interface{}, error) {
		if !declared {
			return inferScalar(s), nil
		}
		switch info.Type {
		case "Integer":
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("record %d: field %s: cannot parse %q as an integer", r.Line, field.Key, s)
			}
			return v, nil
		case "Float":
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("record %d: field %s: cannot parse %q as a float", r.Line, field.Key, s)
			}
			return v, nil
		default:
			return s, nil
		}
	}

	if !multi {
		return scalar(parts[0])
	}
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		v, err := scalar(part)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// splitEffAnnotations explodes snpEff EFF entries into one list per
// component so each is searchable on its own.  The raw values stay in the
// document under the regular EFF key.
func (c *Converter) splitEffAnnotations(doc docindex.Document, r *Record, value interface{}) error {
	entries, ok := value.([]interface{})
	if !ok {
		entries = []interface{}{value}
	}
	for _, entry := range entries {
		text, ok := entry.(string)
		if !ok {
			return fmt.Errorf("record %d: field EFF: unexpected non-string annotation", r.Line)
		}
		for i, component := range effSplitRe.Split(text, -1) {
			if i >= len(effFields) {
				break
			}
			key := "info_splitted_eff_" + strings.ToLower(effFields[i]) + "_ss"
			list, _ := doc[key].([]interface{})
			doc[key] = append(list, component)
		}
	}
	return nil
}

// aggregate writes sorting_min_ and sorting_max_ companions for numeric
// list fields so documents can be ordered by a field that holds several
// values.  Values outside the field's declared range are ignored.
func (c *Converter) aggregate(doc docindex.Document, key string, list []interface{}) {
	limit, limited := c.ranges[key]
	var (
		min, max float64
		minV     interface{}
		maxV     interface{}
	)
	for _, item := range list {
		var v float64
		switch n := item.(type) {
		case int64:
			v = float64(n)
		case float64:
			v = n
		default:
			return
		}
		if limited && !limit.contains(v) {
			continue
		}
		if minV == nil || v < min {
			min, minV = v, item
		}
		if maxV == nil || v > max {
			max, maxV = v, item
		}
	}
	if minV == nil {
		return
	}
	base := inferTypedKey(key, minV) + "_ns"
	doc["sorting_min_"+base] = minV
	doc["sorting_max_"+base] = maxV
}

func (c *Converter) convertSamples(doc docindex.Document, r *Record) {
	if len(r.Samples) == 0 {
		return
	}
	names := make([]interface{}, len(c.header.Samples))
	for i, name := range c.header.Samples {
		names[i] = name
	}
	doc["samples_info_names_ss_ci"] = names

	for i, format := range r.Format {
		values := make([]interface{}, len(r.Samples))
		for j, sample := range r.Samples {
			if i < len(sample) {
				values[j] = sample[i]
			} else {
				values[j] = ""
			}
		}
		doc["samples_info_"+format+"_ss"] = values
	}
}

// inferTypedKey derives the typed key of an undeclared INFO field from a
// representative value.
func inferTypedKey(key string, value interface{}) string {
	sample := value
	multi := false
	if list, ok := value.([]interface{}); ok {
		multi = true
		if len(list) > 0 {
			sample = list[0]
		}
	}
	var suffix string
	switch sample.(type) {
	case bool:
		suffix = "b"
	case int64:
		suffix = "l"
	case float64:
		suffix = "f"
	default:
		suffix = "s"
	}
	if multi {
		suffix += "s"
	}
	return "info_" + key + "_" + suffix
}

// inferScalar parses a raw value as an integer, then a float, falling back
// to the string itself.
func inferScalar(s string) interface{} {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

func toValueList(items []string) []interface{} {
	values := make([]interface{}, len(items))
	for i, item := range items {
		values[i] = item
	}
	return values
}

// variantType classifies one substitution the way snpEff reports them.
func variantType(ref, alt string) string {
	switch {
	case alt == "." || alt == "":
		return "MR"
	case len(ref) == 1 && len(alt) == 1:
		return "SNP"
	case len(ref) == len(alt):
		return "MNP"
	case len(ref) < len(alt):
		return "INS"
	default:
		return "DEL"
	}
}
