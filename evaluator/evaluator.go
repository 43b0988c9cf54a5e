// Package evaluator implements the block-respecting compressed evaluator:
// a generic framework that partitions a computation of T blocks into an
// implicit height-compressed binary merge tree, visits it via the natural
// left-to-right block order, and keeps only a rolling boundary, a
// monotonic progress ledger, and an O(log T)-deep merge stack in memory.
package evaluator

import (
	"github.com/grailbio/rosalind/ledger"
	"github.com/grailbio/rosalind/rerr"
	"github.com/pkg/errors"
)

// Summary is an opaque, mergeable block result. Implementations must be
// deterministic (identical inputs yield an identical Merge result) and
// bounded in size.
type Summary interface {
	// Merge combines the receiver (covering the earlier span) with sibling
	// (covering the later, adjacent span) into their parent's summary.
	// Merge must be associative; it need not be commutative, so
	// implementations must respect receiver-then-sibling order.
	Merge(sibling Summary) (Summary, error)
}

// Boundary is the reconstructable state needed to resume the next block.
// It is opaque to the evaluator; BlockProcessor implementations define its
// concrete shape.
type Boundary interface{}

// BlockProcessor evaluates one block at a time; Summary.Merge is invoked by
// the evaluator on the caller's behalf as siblings become available.
type BlockProcessor interface {
	// Process evaluates block blockIndex starting from boundary, returning
	// the boundary to resume from for blockIndex+1 and this block's
	// summary. Process must be deterministic and must not retain
	// references to boundary or the returned summary beyond its own
	// execution.
	Process(boundary Boundary, blockIndex int) (next Boundary, summary Summary, err error)
}

type stackFrame struct {
	has     bool
	summary Summary
}

// Evaluator runs a BlockProcessor over nBlocks blocks, producing a single
// root Summary. One Evaluator instance is single-use: construct a fresh one
// per evaluation via New.
type Evaluator struct {
	nBlocks int
	ledger  *ledger.Ledger
	offsets []int // level -> first ledger slot of that level's parents
	sizes   []int // level -> number of tree nodes at that level
	stack   []stackFrame
}

// New allocates an Evaluator for nBlocks blocks. nBlocks must be >= 1.
func New(nBlocks int) *Evaluator {
	if nBlocks < 1 {
		panic("evaluator.New: nBlocks must be >= 1")
	}
	sizes := []int{nBlocks}
	for sizes[len(sizes)-1] > 1 {
		sizes = append(sizes, (sizes[len(sizes)-1]+1)/2)
	}
	// One ledger slot (a left/right bit pair) per internal tree node: the
	// parents of level l are exactly the nodes of level l+1, so the slot
	// count is the node count above the leaves: T-1 binary merges plus one
	// unary parent for every odd-sized level (T=3 gives 3 slots).
	offsets := make([]int, len(sizes))
	slots := 0
	for l := 0; l+1 < len(sizes); l++ {
		offsets[l] = slots
		slots += sizes[l+1]
	}
	return &Evaluator{
		nBlocks: nBlocks,
		ledger:  ledger.New(slots),
		offsets: offsets,
		sizes:   sizes,
		stack:   make([]stackFrame, 1, len(sizes)),
	}
}

// NumBlocks returns the number of blocks this evaluator was constructed for.
func (e *Evaluator) NumBlocks() int { return e.nBlocks }

// Ledger exposes the progress ledger for inspection by the space accountant
// and by tests asserting the monotonic-bit invariant.
func (e *Evaluator) Ledger() *ledger.Ledger { return e.ledger }

// StackDepth returns the current merge stack depth, which is bounded by
// ceil(log2(nBlocks))+1 (one frame per tree level) throughout evaluation.
func (e *Evaluator) StackDepth() int { return len(e.stack) }

func (e *Evaluator) bitIndex(level, parentPos int) int {
	return e.offsets[level] + parentPos
}

// Run drives proc across all blocks starting from initial, bubbling
// each block summary up through the implicit merge tree, and returns the
// root summary together with the final rolling boundary.
func (e *Evaluator) Run(initial Boundary, proc BlockProcessor) (root Summary, final Boundary, err error) {
	boundary := initial
	for i := 0; i < e.nBlocks; i++ {
		next, summary, perr := proc.Process(boundary, i)
		if perr != nil {
			return nil, boundary, errors.Wrapf(
				rerr.E(rerr.InvalidInput, "process", i, perr),
				"block %d failed from boundary hash %016x", i, boundaryHash(boundary))
		}
		boundary = next
		if merr := e.bubble(i, summary); merr != nil {
			return nil, boundary, merr
		}
	}
	root, err = e.finalizeSpine()
	return root, boundary, err
}

// bubble propagates a finished block summary upward, binary-counter style,
// through the implicit tree. At each level the evaluator either
// finds the sibling slot empty (push and stop) or occupied (pop, merge,
// carry to the next level). The ledger bit for a (level, parentPos) slot is
// set exactly once and is never cleared, even though the merge-stack frame
// backing it is freed as soon as its sibling arrives; the ledger is the
// durable audit trail, the stack is the O(log T) working state.
func (e *Evaluator) bubble(blockIndex int, summary Summary) error {
	level := 0
	pos := blockIndex
	cur := summary
	for {
		isRight := pos%2 == 1
		parentPos := pos / 2
		hasParent := level+1 < len(e.sizes)
		var bit int
		if hasParent {
			bit = e.bitIndex(level, parentPos)
			if isRight {
				e.ledger.SetRight(bit)
			} else {
				e.ledger.SetLeft(bit)
			}
		}

		if level == len(e.stack) {
			e.stack = append(e.stack, stackFrame{})
		}
		if !e.stack[level].has {
			e.stack[level] = stackFrame{has: true, summary: cur}
			return nil
		}

		if !hasParent || !e.ledger.Left(bit) || !e.ledger.Right(bit) {
			rerr.Invariant(rerr.LedgerCorruption, "merge attempted before both children recorded")
		}
		sibling := e.stack[level].summary
		e.stack[level] = stackFrame{}

		var left, right Summary
		if isRight {
			left, right = sibling, cur
		} else {
			left, right = cur, sibling
		}
		merged, merr := left.Merge(right)
		if merr != nil {
			return errors.Wrapf(merr, "merge failed at level %d", level)
		}
		cur = merged
		pos = parentPos
		level++
	}
}

// finalizeSpine combines whatever the DFS left behind: when nBlocks is not a
// power of two, the merge stack ends with a right-leaning spine of pending
// summaries, one per level at most. They are combined from the highest
// (leftmost, largest) level down to the lowest (rightmost, smallest),
// which reconstructs strict left-to-right order.
func (e *Evaluator) finalizeSpine() (Summary, error) {
	var acc Summary
	for level := len(e.stack) - 1; level >= 0; level-- {
		if !e.stack[level].has {
			continue
		}
		if acc == nil {
			acc = e.stack[level].summary
			continue
		}
		merged, err := acc.Merge(e.stack[level].summary)
		if err != nil {
			return nil, errors.Wrapf(err, "spine merge failed at level %d", level)
		}
		acc = merged
	}
	if acc == nil {
		rerr.Invariant(rerr.LedgerCorruption, "no root summary after spine finalization")
	}
	return acc, nil
}
