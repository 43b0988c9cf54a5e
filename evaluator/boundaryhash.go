package evaluator

import (
	"fmt"

	farm "github.com/dgryski/go-farm"
)

// Hashable lets a Boundary implementation supply a cheap, deterministic
// fingerprint of its own state. Evaluator uses it to attach a reproducible
// boundary hash to block-processor failures, so a caller can replay exactly
// the failing block.
//
// Boundaries that don't implement Hashable fall back to hashing their
// fmt.Sprintf("%#v", ...) representation, which is deterministic but slower;
// the aligner's and variant caller's boundary types implement Hashable
// directly.
type Hashable interface {
	Hash() uint64
}

// boundaryHash returns a fast, deterministic fingerprint of b.
func boundaryHash(b Boundary) uint64 {
	if h, ok := b.(Hashable); ok {
		return h.Hash()
	}
	return farm.Hash64([]byte(fmt.Sprintf("%#v", b)))
}
