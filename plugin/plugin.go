// Package plugin defines the block-processor contract third-party
// extensions implement to run under the compressed evaluator. A plugin
// inherits the engine's O(sqrt(t)) working-set bound automatically: it only
// ever sees one boundary and at most O(log T) summaries, provided its
// summaries are bounded in size.
//
// Contract rules (enforced by convention, not at runtime):
//   - Process and Merge must be deterministic.
//   - Neither may retain a reference to a boundary or summary argument
//     beyond its own return; summaries are owned by the evaluator's merge
//     stack until consumed.
//   - Merge must be associative. It need not be commutative.
//
// Plugin discovery and registration live in the front-end, outside this
// repository; this package is only the execution contract.
package plugin

import (
	"github.com/grailbio/rosalind/evaluator"
)

// Boundary is the reconstructable state a plugin needs to resume the next
// block; its concrete shape is the plugin's own.
type Boundary = evaluator.Boundary

// Summary is an opaque, bounded, mergeable block result.
type Summary interface{}

// Processor is the plugin execution contract: produce a summary from a block
// given a boundary, and merge two sibling summaries into their parent's.
type Processor interface {
	Process(boundary Boundary, blockIndex int) (next Boundary, summary Summary, err error)
	Merge(left, right Summary) (Summary, error)
}

// Initializer is optionally implemented by a Processor that derives its
// initial boundary from configuration. The config map carries
// front-end-provided settings opaquely; keys are the plugin's own.
type Initializer interface {
	InitBoundary(cfg map[string]interface{}) (Boundary, error)
}

// summaryBox adapts a plugin Summary to evaluator.Summary by routing Merge
// back through the owning Processor. It is how the evaluator stays
// polymorphic over the summary type while the plugin keeps merge logic in
// one place.
type summaryBox struct {
	proc  Processor
	value Summary
}

func (s summaryBox) Merge(sibling evaluator.Summary) (evaluator.Summary, error) {
	merged, err := s.proc.Merge(s.value, sibling.(summaryBox).value)
	if err != nil {
		return nil, err
	}
	return summaryBox{proc: s.proc, value: merged}, nil
}

type procAdapter struct {
	proc Processor
}

func (a procAdapter) Process(boundary evaluator.Boundary, blockIndex int) (evaluator.Boundary, evaluator.Summary, error) {
	next, summary, err := a.proc.Process(boundary, blockIndex)
	if err != nil {
		return nil, nil, err
	}
	return next, summaryBox{proc: a.proc, value: summary}, nil
}

// Run evaluates proc over nBlocks blocks under the compressed evaluator and
// returns the root summary. If proc implements Initializer and cfg is
// non-nil, the initial boundary comes from InitBoundary; otherwise it is
// nil.
func Run(nBlocks int, proc Processor, cfg map[string]interface{}) (Summary, error) {
	var initial Boundary
	if init, ok := proc.(Initializer); ok && cfg != nil {
		var err error
		if initial, err = init.InitBoundary(cfg); err != nil {
			return nil, err
		}
	}
	root, _, err := evaluator.New(nBlocks).Run(initial, procAdapter{proc: proc})
	if err != nil {
		return nil, err
	}
	return root.(summaryBox).value, nil
}
