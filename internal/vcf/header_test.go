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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomicsio/featix/internal/textio"
)

func parseHeader(t *testing.T, text string) (*Header, error) {
	t.Helper()
	return ParseHeader(textio.NewScanner(strings.NewReader(text)))
}

func TestParseHeader(t *testing.T) {
	h, err := parseHeader(t, strings.Join([]string{
		"##fileformat=VCFv4.1",
		`##INFO=<ID=DP,Number=1,Type=Integer,Description="Total Depth">`,
		`##INFO=<ID=AF,Number=.,Type=Float,Description="Allele Frequency, for each ALT (Range:0-1)">`,
		`##INFO=<ID=DB,Number=0,Type=Flag,Description="dbSNP membership">`,
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA001\tNA002",
		"",
	}, "\n"))
	require.NoError(t, err)

	require.Len(t, h.Infos, 3)
	assert.Equal(t, Info{
		ID:          "AF",
		Number:      ".",
		Type:        "Float",
		Description: "Allele Frequency, for each ALT (Range:0-1)",
	}, h.Infos["AF"])
	assert.False(t, h.Infos["DP"].multiValued())
	assert.False(t, h.Infos["DB"].multiValued())
	assert.True(t, h.Infos["AF"].multiValued())
	assert.Equal(t, []string{"NA001", "NA002"}, h.Samples)
}

func TestParseHeader_NoSamples(t *testing.T) {
	h, err := parseHeader(t, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	require.NoError(t, err)
	assert.Empty(t, h.Samples)
}

func TestParseHeader_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing column header", "##fileformat=VCFv4.1\n"},
		{"data before header", "1\t100\t.\tA\tT\t.\t.\t.\n"},
		{"info without id", `##INFO=<Number=1,Type=Integer,Description="x">` + "\n#CHROM\tPOS\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := parseHeader(t, test.text)
			assert.Error(t, err)
		})
	}
}

func TestParseRecord(t *testing.T) {
	r, err := ParseRecord("chr7\t117120017\trs1042522\tCT\tC,CTT\t29.5\tPASS\tDP=14;DB\tGT:DP\t0|1:12\t1|1:9", 3)
	require.NoError(t, err)

	assert.Equal(t, "chr7", r.Chrom)
	assert.Equal(t, uint64(117120016), r.Start())
	assert.Equal(t, uint64(117120018), r.End())
	assert.Equal(t, []string{"C", "CTT"}, r.Alts)
	require.NotNil(t, r.Qual)
	assert.Equal(t, 29.5, *r.Qual)
	assert.Equal(t, []InfoField{
		{Key: "DP", Value: "14", HasValue: true},
		{Key: "DB", HasValue: false},
	}, r.Info)
	assert.Equal(t, []string{"GT", "DP"}, r.Format)
	assert.Equal(t, [][]string{{"0|1", "12"}, {"1|1", "9"}}, r.Samples)
}

func TestParseRecord_MissingQual(t *testing.T) {
	r, err := ParseRecord("1\t100\t.\tA\tT\t.\tPASS\tDP=1", 1)
	require.NoError(t, err)
	assert.Nil(t, r.Qual)
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"too few columns", "1\t100\t.\tA\tT"},
		{"bad position", "1\tx\t.\tA\tT\t.\tPASS\t."},
		{"zero position", "1\t0\t.\tA\tT\t.\tPASS\t."},
		{"bad quality", "1\t100\t.\tA\tT\thigh\tPASS\t."},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseRecord(test.text, 1)
			assert.Error(t, err)
		})
	}
}
