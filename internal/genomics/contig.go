// Package genomics contains definitions related to genomic data.
package genomics

import (
	"sort"
	"strings"
)

// chromosomePrefixes are the tokens removed during contig normalization,
// longest first so that "CHROMOSOME" is not left as "OSOME" by the "CHROM"
// replacement.
var chromosomePrefixes = []string{"CHROMOSOME", "CHROM", "CHR"}

// NormalizeContig canonicalizes a raw contig label so that the same logical
// contig indexed from different sources maps to one key.  The label is
// upper-cased and known chromosome prefix tokens are removed.  If stripping
// yields an empty string the original label is returned unchanged.  The
// function is total and idempotent; interval data and sequence data are
// joined by its output.
func NormalizeContig(name string) string {
	normalized := strings.ToUpper(name)
	for _, prefix := range chromosomePrefixes {
		normalized = strings.ReplaceAll(normalized, prefix, "")
	}
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return name
	}
	return normalized
}

// HaveCommonContig reports whether the two contig name sets share at least
// one name.  An annotation and a sequence that share no contigs is almost
// always a sign of mismatched inputs and should be surfaced as a warning.
func HaveCommonContig(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, name := range a {
		set[name] = true
	}
	for _, name := range b {
		if set[name] {
			return true
		}
	}
	return false
}

// SummarizeContigs renders a sorted, comma-separated sample of contig names
// for warning messages, truncated to at most max names.
func SummarizeContigs(names []string, max int) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	if len(sorted) <= max {
		return strings.Join(sorted, ", ")
	}
	return strings.Join(sorted[:max], ", ") + ", ..."
}
