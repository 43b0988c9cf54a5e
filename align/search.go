package align

import (
	"sort"

	"github.com/grailbio/rosalind/fmindex"
)

// searchState is one frame of the backward-search DFS: the current SA range,
// the next seed offset to match (counting down toward the seed's 5' end),
// and the mismatches spent so far.
type searchState struct {
	r  fmindex.Range
	i  int
	mm int
}

// searcher runs bounded-mismatch backward searches against one index. The
// DFS stack is reused across reads; its high-water depth is seedLen *
// (3*maxMismatches + 1) in the worst case, independent of reference size.
type searcher struct {
	ix    *fmindex.Index
	opts  Opts
	stack []searchState
	found []Candidate
}

func newSearcher(ix *fmindex.Index, opts Opts) *searcher {
	return &searcher{ix: ix, opts: opts}
}

// search aligns the seed seq[start : start+length] and returns candidates
// ordered by (ascending mismatch count, ascending reference position),
// truncated to MaxCandidates. The returned slice is valid until the next
// call.
func (s *searcher) search(seq []byte, start, length int) []Candidate {
	s.found = s.found[:0]
	s.stack = s.stack[:0]
	s.stack = append(s.stack, searchState{r: s.ix.FullRange(), i: length - 1, mm: 0})
	for len(s.stack) > 0 {
		st := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if st.i < 0 {
			s.locateAll(st.r, st.mm, length)
			continue
		}
		want, ok := fmindex.EncodeACGT(seq[start+st.i])
		if !ok {
			// The seed is N-free by construction; an out-of-alphabet
			// symbol here means seedSpan and search disagree.
			continue
		}
		// Push alternates first so the exact-match branch is popped (and
		// therefore resolved) first; candidate order is re-established by
		// the final sort either way.
		if st.mm < s.opts.MaxMismatches {
			for sym := fmindex.SymA; sym <= fmindex.SymT; sym++ {
				if sym == want {
					continue
				}
				if nr := s.ix.BackwardExtend(st.r, sym); !nr.Empty() {
					s.stack = append(s.stack, searchState{r: nr, i: st.i - 1, mm: st.mm + 1})
				}
			}
		}
		if nr := s.ix.BackwardExtend(st.r, want); !nr.Empty() {
			s.stack = append(s.stack, searchState{r: nr, i: st.i - 1, mm: st.mm})
		}
	}
	sort.Slice(s.found, func(a, b int) bool {
		if s.found[a].Mismatches != s.found[b].Mismatches {
			return s.found[a].Mismatches < s.found[b].Mismatches
		}
		return s.found[a].Pos < s.found[b].Pos
	})
	if len(s.found) > s.opts.MaxCandidates {
		s.found = s.found[:s.opts.MaxCandidates]
	}
	return s.found
}

// locateAll resolves every row of a surviving SA range to a reference
// position, discarding placements that would run off the reference end
// (matches that begin in the sentinel-wrapped tail).
func (s *searcher) locateAll(r fmindex.Range, mm, seedLen int) {
	for row := r.Lo; row < r.Hi; row++ {
		pos := s.ix.Locate(row)
		if pos+uint64(seedLen) <= s.ix.Len() {
			s.found = append(s.found, Candidate{Pos: pos, Mismatches: mm})
		}
	}
}
