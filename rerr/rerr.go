// Package rerr implements Rosalind's error taxonomy: a small set of error
// Kinds (not Go types) that every subsystem reports through, so callers can
// dispatch on *what kind* of failure occurred without type-switching on
// package-private error structs.
//
// The shape is modeled on github.com/grailbio/base/errors's E(...) variadic
// aggregator, but Kind is Rosalind's own closed enum: the seven kinds named
// in this package don't map onto that package's fixed Kind constants.
package rerr

import (
	"fmt"
	"os"
)

// Kind classifies an error without requiring callers to know its Go type.
type Kind int

const (
	// Other is the zero value: an error that doesn't (yet) have a more
	// specific kind assigned.
	Other Kind = iota
	// InvalidInput marks malformed FASTA/FASTQ/SAM, an out-of-alphabet
	// symbol, or a negative coordinate.
	InvalidInput
	// UnsortedInput marks an out-of-order read delivered to the variant
	// caller.
	UnsortedInput
	// InputTooLarge marks a single read exceeding the read-buffer slice.
	InputTooLarge
	// WorkspaceExhausted marks a workspace pool whose capacity cannot
	// satisfy an acquisition.
	WorkspaceExhausted
	// BoundaryMismatch is an internal invariant violation: a
	// reconstructed boundary hash differs from the one recorded at
	// replay time.
	BoundaryMismatch
	// LedgerCorruption is an internal invariant violation: an attempt to
	// merge a parent whose child bits are not both set.
	LedgerCorruption
	// SpaceBoundExceeded is an internal, debug-build-only invariant
	// violation: accountant peak usage surpassed the declared envelope.
	SpaceBoundExceeded
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case UnsortedInput:
		return "unsorted input"
	case InputTooLarge:
		return "input too large"
	case WorkspaceExhausted:
		return "workspace exhausted"
	case BoundaryMismatch:
		return "boundary mismatch"
	case LedgerCorruption:
		return "ledger corruption"
	case SpaceBoundExceeded:
		return "space bound exceeded"
	default:
		return "other"
	}
}

// internalKinds are surfaced as panics in debug builds and as a diagnostic +
// exit(2) at the cmd seam in release builds.
func (k Kind) internal() bool {
	switch k {
	case BoundaryMismatch, LedgerCorruption, SpaceBoundExceeded:
		return true
	default:
		return false
	}
}

// Error is Rosalind's error value. It always carries a Kind, an Op
// describing the failing operation, and optionally a Path/Record identifying
// the offending input and a wrapped underlying error.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Record int64 // record/coordinate/block index, -1 if not applicable
	Err    error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.Path != "" {
		s += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Record >= 0 {
		s += fmt.Sprintf(" [record %d]", e.Record)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error from its arguments, whose types are inspected in order:
// a Kind sets Kind, a string first sets Op then Path, an int64/int sets
// Record, and an error sets Err. This mirrors grailbio/base/errors.E's
// positional-by-type convention.
func E(args ...interface{}) *Error {
	e := &Error{Record: -1}
	opSet := false
	for _, arg := range args {
		switch v := arg.(type) {
		case Kind:
			e.Kind = v
		case string:
			if !opSet {
				e.Op = v
				opSet = true
			} else {
				e.Path = v
			}
		case int:
			e.Record = int64(v)
		case int64:
			e.Record = v
		case error:
			e.Err = v
		}
	}
	return e
}

// Invariant panics with an *Error of the given (necessarily internal) kind.
// It is the only sanctioned way to report LedgerCorruption,
// BoundaryMismatch, and SpaceBoundExceeded: these are bugs, not recoverable
// user errors, and panicking in debug builds makes CI regressions loud (exit
// code 2 once converted at the cmd seam).
func Invariant(kind Kind, op string) {
	if !kind.internal() {
		panic(fmt.Sprintf("rerr.Invariant called with non-internal kind %v", kind))
	}
	panic(E(kind, op))
}

// HandleInvariantExit is deferred at the cmd seam. It converts an internal
// invariant panic into a single stderr diagnostic and exit code 2, the exit
// class reserved for engine bugs so CI regressions are loud; any other panic
// is re-raised untouched.
func HandleInvariantExit() {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*Error); ok && e.Kind.internal() {
		fmt.Fprintf(os.Stderr, "rosalind: internal invariant violation: %v; please report this bug\n", e)
		os.Exit(2)
	}
	panic(r)
}

// IsKind reports whether err is (or wraps) a *rerr.Error of the given Kind.
// Both Go 1.13 Unwrap chains and github.com/pkg/errors Cause chains are
// followed, since the engine wraps with the latter internally.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		switch v := err.(type) {
		case interface{ Unwrap() error }:
			err = v.Unwrap()
		case interface{ Cause() error }:
			err = v.Cause()
		default:
			return false
		}
	}
	return false
}
