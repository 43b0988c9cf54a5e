// Package align implements the block aligner: it seeds reads, drives the
// FM-index's backward search one symbol at a time from the 3' end with a
// bounded mismatch budget, and emits per-read candidate sets in input
// order. The aligner runs as a block processor under the compressed
// evaluator, one block being a contiguous batch of reads.
package align

import (
	"github.com/grailbio/rosalind/fmindex"
)

// Defaults for the aligner's configurable limits.
const (
	DefaultMaxMismatches = 2
	DefaultMaxCandidates = 64
	DefaultMinReadLen    = 16
	DefaultMaxReadLen    = 1024
)

// Read is one input read: a name, its bases, and (optionally, for FASTQ
// input) per-base qualities. Qual is nil for plain one-read-per-line input.
type Read struct {
	Name string
	Seq  []byte
	Qual []byte
}

// Candidate is one reference placement of a read's seed: the flattened
// reference position of the seed's first base and the number of mismatches
// the backward search accepted on the way there.
type Candidate struct {
	Pos        uint64
	Mismatches int
}

// Aligned is the per-read alignment result, the unit flushed downstream as
// each block completes. Candidates are ordered by (ascending mismatch count,
// ascending reference position) and capped at the configured maximum; the
// SeedStart/SeedLen pair records which part of the read drove the search
// (the whole read unless N-splitting applied).
type Aligned struct {
	Read       Read
	SeedStart  int
	SeedLen    int
	Candidates []Candidate
}

// Opts bounds the aligner's search. The zero value is invalid; use
// DefaultOpts as a starting point.
type Opts struct {
	// MaxMismatches is the per-read mismatch budget k.
	MaxMismatches int
	// MaxCandidates caps each read's candidate list at M entries.
	MaxCandidates int
	// MinReadLen: shorter reads are emitted with zero candidates.
	MinReadLen int
	// MaxReadLen: longer reads are rejected with InputTooLarge.
	MaxReadLen int
}

// DefaultOpts is the default search configuration.
var DefaultOpts = Opts{
	MaxMismatches: DefaultMaxMismatches,
	MaxCandidates: DefaultMaxCandidates,
	MinReadLen:    DefaultMinReadLen,
	MaxReadLen:    DefaultMaxReadLen,
}

// seedSpan finds the longest maximal N-free run of seq; ties go to the
// leftmost run. A read with no A/C/G/T symbols at all yields length 0.
func seedSpan(seq []byte) (start, length int) {
	bestStart, bestLen := 0, 0
	runStart := -1
	for i := 0; i <= len(seq); i++ {
		ok := i < len(seq) && isSearchable(seq[i])
		if ok && runStart < 0 {
			runStart = i
		}
		if !ok && runStart >= 0 {
			if i-runStart > bestLen {
				bestStart, bestLen = runStart, i-runStart
			}
			runStart = -1
		}
	}
	return bestStart, bestLen
}

func isSearchable(b byte) bool {
	_, ok := fmindex.EncodeACGT(b)
	return ok
}
