package interval

import "math"

// PosType is the type used to represent interval coordinates. int32 is wide
// enough for any single contig, since that's what BAM is limited to.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// UnionScanner iterates over the positions of an interval union, expressed
// as a sorted endpoint sequence {start0, end0, start1, end1, ...}, in
// limit-bounded steps. The variant caller drives one scanner per region,
// raising the limit to each block's end in turn:
//
//	us := region.Scanner()
//	var start, end PosType
//	for us.Scan(&start, &end, blockEnd) {
//		for pos := start; pos < end; pos++ {
//			// flush the column at pos
//		}
//	}
//
// A subsequent Scan with a higher limit picks up exactly where the previous
// one stopped, so consecutive blocks tile the region with no overlap.
type UnionScanner struct {
	endpoints []PosType
	pos       PosType // next position to yield; PosTypeMax when done
	next      int     // index into endpoints of the current interval's end
}

// NewUnionScanner returns a UnionScanner positioned at the first interval.
func NewUnionScanner(endpoints []PosType) UnionScanner {
	us := UnionScanner{endpoints: endpoints, pos: PosTypeMax}
	if len(endpoints) > 0 {
		us.pos = endpoints[0]
		us.next = 1
	}
	return us
}

// Pos returns the next position to be iterated over, or PosTypeMax if none
// remain.
func (us *UnionScanner) Pos() PosType {
	return us.pos
}

// Scan yields the next run of in-union positions below limit as [*start,
// *end), returning false once every position below limit has been yielded.
func (us *UnionScanner) Scan(start, end *PosType, limit PosType) bool {
	if us.pos >= limit {
		return false
	}
	*start = us.pos
	intervalEnd := us.endpoints[us.next]
	if intervalEnd > limit {
		us.pos = limit
		*end = limit
		return true
	}
	*end = intervalEnd
	if us.next+1 < len(us.endpoints) {
		us.pos = us.endpoints[us.next+1]
		us.next += 2
	} else {
		us.pos = PosTypeMax
	}
	return true
}
