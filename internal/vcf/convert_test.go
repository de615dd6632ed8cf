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
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomicsio/featix/internal/docindex"
)

func converter(t *testing.T, infos ...Info) *Converter {
	t.Helper()
	h := &Header{Infos: make(map[string]Info)}
	for _, info := range infos {
		h.Infos[info.ID] = info
	}
	c, err := NewConverter(h)
	require.NoError(t, err)
	return c
}

func convert(t *testing.T, c *Converter, text string) docindex.Document {
	t.Helper()
	r, err := ParseRecord(text, 1)
	require.NoError(t, err)
	doc, err := c.Convert(r)
	require.NoError(t, err)
	return doc
}

func TestConvert_BaseFields(t *testing.T) {
	c := converter(t)
	doc := convert(t, c, "chr7\t101\trs99\tAC\tA\t50\tPASS\t.")

	assert.Equal(t, "1", doc["__id__"])
	assert.Equal(t, int64(1), doc["line_l"])
	assert.Equal(t, "7", doc["contig_s"])
	assert.Equal(t, "100 102", doc["location_iv"])
	assert.Equal(t, int64(100), doc["start_l"])
	assert.Equal(t, "AC", doc["ref_s_ci"])
	assert.Equal(t, 50.0, doc["qual_f"])
	assert.Equal(t, "rs99", doc["id_s_ci"])
	assert.Equal(t, []interface{}{"PASS"}, doc["filter_ss_ci"])
	assert.Equal(t, []interface{}{"A"}, doc["alt_ss_ci"])
	assert.Equal(t, int64(1), doc["alt_len_i_ns"])
	assert.Equal(t, []interface{}{"DEL"}, doc["type_ss_ci"])
}

func TestConvert_MissingValuesOmitted(t *testing.T) {
	c := converter(t)
	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\t.")

	assert.NotContains(t, doc, "id_s_ci")
	assert.NotContains(t, doc, "filter_ss_ci")
	assert.NotContains(t, doc, "qual_f")
}

func TestConvert_VariantTypes(t *testing.T) {
	tests := []struct {
		ref, alt string
		want     string
	}{
		{"A", "T", "SNP"},
		{"AT", "GC", "MNP"},
		{"A", "AT", "INS"},
		{"AT", "A", "DEL"},
		{"A", ".", "MR"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, variantType(test.ref, test.alt), "%s>%s", test.ref, test.alt)
	}
}

func TestConvert_DeclaredInfoFields(t *testing.T) {
	c := converter(t,
		Info{ID: "DP", Number: "1", Type: "Integer"},
		Info{ID: "AF", Number: ".", Type: "Float"},
		Info{ID: "DB", Number: "0", Type: "Flag"},
		Info{ID: "GENE", Number: "1", Type: "String"},
	)
	doc := convert(t, c, "1\t100\t.\tA\tT,G\t.\t.\tDP=14;AF=0.25,0.75;DB;GENE=CFTR")

	assert.Equal(t, int64(14), doc["info_DP_l"])
	assert.Equal(t, []interface{}{0.25, 0.75}, doc["info_AF_fs"])
	assert.Equal(t, true, doc["info_DB_b"])
	assert.Equal(t, "CFTR", doc["info_GENE_s"])
}

func TestConvert_BadDeclaredValue(t *testing.T) {
	c := converter(t, Info{ID: "DP", Number: "1", Type: "Integer"})
	r, err := ParseRecord("1\t100\t.\tA\tT\t.\t.\tDP=lots", 7)
	require.NoError(t, err)

	_, err = c.Convert(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DP")
	assert.Contains(t, err.Error(), "record 7")
}

func TestNewConverter_UnexpectedInfoType(t *testing.T) {
	h := &Header{Infos: map[string]Info{
		"X": {ID: "X", Number: "1", Type: "Complex"},
	}}
	_, err := NewConverter(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Complex")
}

func TestConvert_InferredFields(t *testing.T) {
	c := converter(t)
	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\tDP=14;AF=0.5;NAME=foo;XS=1,2,3")

	assert.Equal(t, int64(14), doc["info_DP_l"])
	assert.Equal(t, 0.5, doc["info_AF_f"])
	assert.Equal(t, "foo", doc["info_NAME_s"])
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, doc["info_XS_ls"])

	// The inferred key is remembered for later records.
	doc = convert(t, c, "1\t200\t.\tA\tT\t.\t.\tDP=9")
	assert.Equal(t, int64(9), doc["info_DP_l"])
}

func TestConvert_SortingAggregates(t *testing.T) {
	c := converter(t, Info{
		ID: "AF", Number: ".", Type: "Float",
		Description: "Allele frequency (Range:0-1)",
	})
	doc := convert(t, c, "1\t100\t.\tA\tT,G,C\t.\t.\tAF=0.2,1.5,0.9")

	// Values outside the declared range stay in the document but do not
	// feed the sorting aggregates.
	assert.Equal(t, []interface{}{0.2, 1.5, 0.9}, doc["info_AF_fs"])
	assert.Equal(t, 0.2, doc["sorting_min_info_AF_f_ns"])
	assert.Equal(t, 0.9, doc["sorting_max_info_AF_f_ns"])
}

func TestConvert_SortingAggregatesWithoutRange(t *testing.T) {
	c := converter(t, Info{ID: "MQ", Number: ".", Type: "Integer"})
	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\tMQ=30,10,20")

	assert.Equal(t, int64(10), doc["sorting_min_info_MQ_l_ns"])
	assert.Equal(t, int64(30), doc["sorting_max_info_MQ_l_ns"])
}

func TestConvert_SortingAggregateAllOutOfRange(t *testing.T) {
	c := converter(t, Info{
		ID: "AF", Number: ".", Type: "Float",
		Description: "(Range:0-1)",
	})
	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\tAF=2.0,3.0")

	assert.NotContains(t, doc, "sorting_min_info_AF_f_ns")
	assert.NotContains(t, doc, "sorting_max_info_AF_f_ns")
}

func TestConvert_SplitEffAnnotations(t *testing.T) {
	c := converter(t, Info{ID: "EFF", Number: ".", Type: "String"})
	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\t"+
		"EFF=NON_SYNONYMOUS_CODING(MODERATE|MISSENSE|Cca/Aca|P141T|306|CFTR|protein_coding|CODING|NM_000492||1),"+
		"DOWNSTREAM(MODIFIER||||306|CFTR-AS1|antisense|NON_CODING|NR_149084||1)")

	// The raw annotations survive alongside the exploded components.
	raw, ok := doc["info_EFF_ss"].([]interface{})
	require.True(t, ok)
	assert.Len(t, raw, 2)

	assert.Equal(t, []interface{}{"NON_SYNONYMOUS_CODING", "DOWNSTREAM"},
		doc["info_splitted_eff_effect_ss"])
	assert.Equal(t, []interface{}{"MODERATE", "MODIFIER"},
		doc["info_splitted_eff_effect_impact_ss"])
	assert.Equal(t, []interface{}{"CFTR", "CFTR-AS1"},
		doc["info_splitted_eff_gene_name_ss"])
	assert.Equal(t, []interface{}{"1", "1"},
		doc["info_splitted_eff_genotype_number_ss"])
}

func TestConvert_Samples(t *testing.T) {
	h := &Header{Infos: map[string]Info{}, Samples: []string{"NA001", "NA002"}}
	c, err := NewConverter(h)
	require.NoError(t, err)

	doc := convert(t, c, "1\t100\t.\tA\tT\t.\t.\t.\tGT:DP\t0|1:12\t1|1")

	assert.Equal(t, []interface{}{"NA001", "NA002"}, doc["samples_info_names_ss_ci"])
	assert.Equal(t, []interface{}{"0|1", "1|1"}, doc["samples_info_GT_ss"])
	assert.Equal(t, []interface{}{"12", ""}, doc["samples_info_DP_ss"])
}

const indexFixture = "##fileformat=VCFv4.1\n" +
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total Depth\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
	"chr1\t100\t.\tA\tT\t10\tPASS\tDP=5\n" +
	"chr1\t200\t.\tG\tC\t20\tPASS\tDP=9\n" +
	"chr2\t300\t.\tT\tTA\t30\tPASS\tDP=3\n"

func TestIndex(t *testing.T) {
	var batches [][]docindex.Document
	sink := docindex.SinkFunc(func(ctx context.Context, docs []docindex.Document) error {
		batches = append(batches, docs)
		return nil
	})
	ix := docindex.NewIndexer(sink, docindex.Config{BatchSize: 2})

	contigs, err := Index(context.Background(), strings.NewReader(indexFixture), ix, 0, log.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, contigs)
	require.Len(t, batches, 2)
	assert.Equal(t, int64(5), batches[0][0]["info_DP_l"])
	assert.Equal(t, "2", batches[1][0]["contig_s"])
}

func TestIndex_Resume(t *testing.T) {
	var docs []docindex.Document
	sink := docindex.SinkFunc(func(ctx context.Context, batch []docindex.Document) error {
		docs = append(docs, batch...)
		return nil
	})
	ix := docindex.NewIndexer(sink, docindex.Config{BatchSize: 10})

	_, err := Index(context.Background(), strings.NewReader(indexFixture), ix, 2, log.NewNopLogger())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, int64(3), docs[0]["line_l"])
}
