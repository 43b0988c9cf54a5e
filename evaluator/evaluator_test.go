package evaluator

import (
	"testing"

	"github.com/grailbio/rosalind/rerr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumSummary counts cells, the simplest associative merge.
type sumSummary int64

func (s sumSummary) Merge(sibling Summary) (Summary, error) {
	return s + sibling.(sumSummary), nil
}

// rangeProc hands out blockLens[i] cells per block; the boundary is the
// running total, so any retained-state bug shows up as a wrong root.
type rangeProc struct {
	blockLens []int64
	failAt    int
	maxDepth  int
	ev        *Evaluator
}

func (p *rangeProc) Process(boundary Boundary, blockIndex int) (Boundary, Summary, error) {
	if p.failAt > 0 && blockIndex == p.failAt {
		return nil, nil, errors.New("synthetic block failure")
	}
	total := boundary.(int64) + p.blockLens[blockIndex]
	if p.ev != nil && p.ev.StackDepth() > p.maxDepth {
		p.maxDepth = p.ev.StackDepth()
	}
	return total, sumSummary(p.blockLens[blockIndex]), nil
}

func blocksOf(total, blockSize int64) []int64 {
	var out []int64
	for total > 0 {
		n := blockSize
		if n > total {
			n = total
		}
		out = append(out, n)
		total -= n
	}
	return out
}

func evalSum(t *testing.T, total, blockSize int64) (sumSummary, *Evaluator, *rangeProc) {
	proc := &rangeProc{blockLens: blocksOf(total, blockSize), failAt: -1}
	ev := New(len(proc.blockLens))
	proc.ev = ev
	root, final, err := ev.Run(int64(0), proc)
	require.NoError(t, err)
	assert.Equal(t, total, final.(int64))
	return root.(sumSummary), ev, proc
}

// A 1024-cell computation evaluated under B=32 and B=64 must produce the
// same root.
func TestPartitionInvariance(t *testing.T) {
	r32, _, _ := evalSum(t, 1024, 32)
	r64, _, _ := evalSum(t, 1024, 64)
	assert.Equal(t, sumSummary(1024), r32)
	assert.Equal(t, r32, r64)
}

func TestSingleBlock(t *testing.T) {
	root, ev, _ := evalSum(t, 17, 32)
	assert.Equal(t, sumSummary(17), root)
	assert.Equal(t, 1, ev.NumBlocks())
}

func TestPowerOfTwoBlocksSaturateLedger(t *testing.T) {
	root, ev, _ := evalSum(t, 16*8, 8) // T = 16
	assert.Equal(t, sumSummary(128), root)
	l := ev.Ledger()
	for i := 0; i < l.Len(); i++ {
		assert.True(t, l.Left(i), "left bit %d", i)
		assert.True(t, l.Right(i), "right bit %d", i)
	}
}

func TestNonPowerOfTwoSpine(t *testing.T) {
	for _, nBlocks := range []int64{3, 5, 7, 11, 13, 100} {
		root, _, _ := evalSum(t, nBlocks*10, 10)
		assert.Equal(t, sumSummary(nBlocks*10), root, "T=%d", nBlocks)
	}
}

func TestMergeStackDepthIsLogarithmic(t *testing.T) {
	_, _, proc := evalSum(t, 1024, 1) // T = 1024
	// ceil(log2(1024)) = 10, plus the frame being installed.
	assert.LessOrEqual(t, proc.maxDepth, 11)
}

func TestDeterministicReplay(t *testing.T) {
	a, _, _ := evalSum(t, 999, 13)
	b, _, _ := evalSum(t, 999, 13)
	assert.Equal(t, a, b)
}

// Merge order must be left-then-right even though the right child arrives
// last: a non-commutative merge catches any swap.
type concatSummary string

func (s concatSummary) Merge(sibling Summary) (Summary, error) {
	return s + sibling.(concatSummary), nil
}

type letterProc struct{}

func (letterProc) Process(boundary Boundary, blockIndex int) (Boundary, Summary, error) {
	return boundary, concatSummary(rune('a' + blockIndex)), nil
}

func TestMergeOrderIsLeftToRight(t *testing.T) {
	for _, nBlocks := range []int{1, 2, 3, 4, 5, 6, 7, 8, 9} {
		ev := New(nBlocks)
		root, _, err := ev.Run(nil, letterProc{})
		require.NoError(t, err)
		want := ""
		for i := 0; i < nBlocks; i++ {
			want += string(rune('a' + i))
		}
		assert.Equal(t, concatSummary(want), root.(concatSummary), "T=%d", nBlocks)
	}
}

func TestBlockFailureCarriesIndexAndBoundaryHash(t *testing.T) {
	proc := &rangeProc{blockLens: blocksOf(100, 10), failAt: 4}
	ev := New(len(proc.blockLens))
	_, _, err := ev.Run(int64(0), proc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 4")
	assert.Contains(t, err.Error(), "boundary hash")
	assert.True(t, rerr.IsKind(err, rerr.InvalidInput))
}

func TestNewRejectsZeroBlocks(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
