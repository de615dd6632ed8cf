package genomics

import "fmt"

// Region defines a region of genomic interest.
type Region struct {
	// Contig is the normalized contig name the region refers to.  An empty
	// Contig matches any contig.
	Contig string
	// Start and End specify the range (in base pairs) on the contig.  If End
	// is zero, it is treated as though it was set to the last possible
	// position.
	Start, End uint64
}

// Overlaps reports whether the region intersects [start, end].
func (region Region) Overlaps(start, end uint64) bool {
	if region.Start == 0 && region.End == 0 {
		return true
	}
	if region.End != 0 && start > region.End {
		return false
	}
	return end >= region.Start
}

func (region Region) String() string {
	return fmt.Sprintf("[contig:%s, start:%d, end:%d]", region.Contig, region.Start, region.End)
}
