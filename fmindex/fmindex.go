// Package fmindex implements a blocked FM-index over a 2-bit packed
// reference: a Burrows-Wheeler transform of the reference plus a sampled
// suffix array and per-block rank checkpoints, supporting backward search
// in bounded auxiliary state.
//
// The reference text is extended with a single sentinel symbol smaller than
// every base, so suffix order is total and backward search never matches a
// pattern spanning the text end. The index keeps exactly one sentinel row,
// since rank queries (not block-parallel inversion) are this package's only
// consumer.
package fmindex

import "github.com/grailbio/rosalind/twobit"

// Symbol codes used internally by the BWT and rank structures. The sentinel
// and the ambiguous-base category both participate in rank bookkeeping, so
// that for every row index i, the sum of Rank(sym, i) over ALL six
// categories equals i exactly; the sentinel's count is simply never
// queryable through BackwardExtend, which only accepts SymA..SymT.
const (
	symSentinel byte = 0
	SymA        byte = 1
	SymC        byte = 2
	SymG        byte = 3
	SymT        byte = 4
	symN        byte = 5
	numSymbols       = 6
)

// EncodeACGT maps an ASCII base to its fmindex symbol code. ok is false for
// anything other than A/C/G/T (case-insensitive), including 'N': callers
// searching for a read base that turned out to be 'N' must split the read
// instead of querying the index.
func EncodeACGT(ascii byte) (sym byte, ok bool) {
	if !twobit.IsACGT(ascii) {
		return 0, false
	}
	return twobit.EncodeBase(ascii) + 1, true
}

func refSymbol(ref *twobit.Reference, pos uint64) byte {
	if ref.IsAmbiguous(pos) {
		return symN
	}
	return ref.Code(pos) + 1
}

// Range is a half-open row interval [Lo, Hi) in BWT/suffix-array order,
// i.e. an SA range identifying all reference positions that share a common
// suffix.
type Range struct {
	Lo, Hi uint64
}

// Empty reports whether the range matches no rows.
func (r Range) Empty() bool { return r.Lo >= r.Hi }

// Size returns the number of matching rows.
func (r Range) Size() uint64 { return r.Hi - r.Lo }
