package align

import (
	"testing"

	"github.com/grailbio/rosalind/accountant"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/fmindex"
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T, opts Opts) *workspace.Pool {
	pool, err := workspace.NewPool(1<<20,
		workspace.WithShare(PoolComponent, 1.0),
		workspace.WithAccountant(accountant.New()))
	require.NoError(t, err)
	require.GreaterOrEqual(t, pool.Budget(PoolComponent), opts.MaxReadLen)
	return pool
}

type captured struct {
	name       string
	candidates []Candidate
}

func runBatches(t *testing.T, ix *fmindex.Index, reads []Read, perBatch int, opts Opts) (BlockSummary, []captured) {
	var got []captured
	sink := func(a *Aligned) error {
		got = append(got, captured{
			name:       a.Read.Name,
			candidates: append([]Candidate(nil), a.Candidates...),
		})
		return nil
	}
	proc := NewProcessor(reads, perBatch, newSearcher(ix, opts), opts, testPool(t, opts), sink)
	ev := evaluator.New(proc.NumBatches())
	root, _, err := ev.Run(proc.InitBoundary(), proc)
	require.NoError(t, err)
	return root.(BlockSummary), got
}

func someReads(seq string, n int) []Read {
	reads := make([]Read, n)
	for i := range reads {
		offset := (i * 7) % (len(seq) - 20)
		reads[i] = Read{Name: "r" + string(rune('a'+i%26)), Seq: []byte(seq[offset : offset+20])}
	}
	return reads
}

// The root summary and the emission stream must not depend on the batch
// size.
func TestBatchSizeInvariance(t *testing.T) {
	const seq = "ACGTACGGATTACAGGCTTACCGGTTAACCGGATCGATCGGCTAGCTAACGGTACCGT"
	ix := buildIndex(t, seq)
	reads := someReads(seq, 37)
	opts := DefaultOpts

	s4, got4 := runBatches(t, ix, reads, 4, opts)
	s16, got16 := runBatches(t, ix, reads, 16, opts)
	s1, got1 := runBatches(t, ix, reads, 1, opts)
	assert.Equal(t, s4, s16)
	assert.Equal(t, s4, s1)
	assert.Equal(t, got4, got16)
	assert.Equal(t, got4, got1)
	assert.EqualValues(t, 37, s4.Reads)
}

func TestOutputOrderMatchesInputOrder(t *testing.T) {
	const seq = "ACGTACGGATTACAGGCTTACCGGTTAACCGG"
	ix := buildIndex(t, seq)
	reads := []Read{
		{Name: "first", Seq: []byte(seq[0:20])},
		{Name: "second", Seq: []byte(seq[3:23])},
		{Name: "third", Seq: []byte(seq[8:28])},
	}
	_, got := runBatches(t, ix, reads, 2, DefaultOpts)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].name)
	assert.Equal(t, "second", got[1].name)
	assert.Equal(t, "third", got[2].name)
	for i, c := range got {
		require.NotEmpty(t, c.candidates, "read %d", i)
	}
	assert.EqualValues(t, 0, got[0].candidates[0].Pos)
	assert.EqualValues(t, 3, got[1].candidates[0].Pos)
	assert.EqualValues(t, 8, got[2].candidates[0].Pos)
}

func TestShortAndEmptyReadsYieldNoCandidates(t *testing.T) {
	ix := buildIndex(t, "ACGTACGTACGTACGTACGT")
	reads := []Read{
		{Name: "empty", Seq: nil},
		{Name: "short", Seq: []byte("ACGT")},
	}
	summary, got := runBatches(t, ix, reads, 8, DefaultOpts)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].candidates)
	assert.Empty(t, got[1].candidates)
	assert.EqualValues(t, 2, summary.Reads)
	assert.EqualValues(t, 0, summary.Mapped)
}

func TestNSplitUsesLongestSeed(t *testing.T) {
	//                  01234567890123456789012345
	ix := buildIndex(t, "AAAACCCCGGGGTTTTACGTACGTAA")
	opts := DefaultOpts
	opts.MinReadLen = 4
	opts.MaxMismatches = 0
	reads := []Read{{Name: "n", Seq: []byte("CCNGGGGTTTTN")}}
	_, got := runBatches(t, ix, reads, 1, opts)
	require.Len(t, got, 1)
	// The longest N-free seed is "GGGGTTTT", found at reference position 8.
	require.NotEmpty(t, got[0].candidates)
	assert.EqualValues(t, 8, got[0].candidates[0].Pos)
}

func TestOversizedReadRejected(t *testing.T) {
	ix := buildIndex(t, "ACGTACGTACGTACGTACGT")
	opts := DefaultOpts
	opts.MaxReadLen = 8
	reads := []Read{{Name: "big", Seq: []byte("ACGTACGTACGT")}}
	proc := NewProcessor(reads, 1, newSearcher(ix, opts), opts, testPool(t, opts), func(*Aligned) error { return nil })
	ev := evaluator.New(proc.NumBatches())
	_, _, err := ev.Run(proc.InitBoundary(), proc)
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.InputTooLarge) || rerr.IsKind(err, rerr.InvalidInput))
}
