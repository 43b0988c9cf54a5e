package interval

import "github.com/pkg/errors"

// Region is a single half-open coordinate range [Start, End) on one
// reference contig. The streaming variant caller restricts pileup
// construction to one Region at a time; wider BED-style
// multi-region unions are out of scope for this engine.
type Region struct {
	Start PosType
	End   PosType
}

// NewRegion validates and constructs a Region.
func NewRegion(start, end PosType) (Region, error) {
	if start < 0 || end <= start {
		return Region{}, errors.Errorf("invalid region [%d, %d)", start, end)
	}
	return Region{Start: start, End: end}, nil
}

// Contains reports whether pos falls within the region.
func (r Region) Contains(pos PosType) bool {
	return pos >= r.Start && pos < r.End
}

// Len returns the number of positions covered by the region.
func (r Region) Len() PosType {
	return r.End - r.Start
}

// Scanner returns a UnionScanner over the single-interval endpoint sequence
// {Start, End}, so callers that already know how to drive UnionScanner (as
// the variant caller's column flusher does) can treat a Region as a single
// interval of such a sequence.
func (r Region) Scanner() UnionScanner {
	return NewUnionScanner([]PosType{r.Start, r.End})
}
