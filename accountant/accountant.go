// Package accountant implements the space accountant: a logical cell counter
// over the engine's dynamic working set (rolling boundary, merge stack,
// ledger, active workspace slices), excluding the FM-index, the reference,
// and output emission buffers.
//
// One Accountant is owned by one evaluation; there is no global instance.
package accountant

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/grailbio/rosalind/rerr"
)

// Bound coefficients for the peak <= Alpha*B + Beta*T + Gamma*log2(T)
// envelope. They are declared, not derived: each test harness asserts its own
// observed peak against Bound with these constants, following the same
// discipline the original engine uses (declare in CI, fail loudly on
// regression).
const (
	Alpha = 2
	Beta  = 1
	Gamma = 8
)

// Bound returns the declared working-set envelope, in logical cells, for a
// blocked evaluation with block size b and block count t.
func Bound(b, t int) int64 {
	log2t := 0
	if t > 1 {
		log2t = bits.Len(uint(t - 1))
	}
	return Alpha*int64(b) + Beta*int64(t) + Gamma*int64(log2t)
}

// Accountant tracks the logical cell count of the dynamic working set,
// broken down by component. It is not thread-safe: the engine is
// single-threaded within one evaluation, and each
// evaluation owns its own Accountant.
type Accountant struct {
	current      int64
	peak         int64
	perComponent map[string]int64
}

// New returns an empty Accountant.
func New() *Accountant {
	return &Accountant{perComponent: make(map[string]int64)}
}

// Observe records a logical cell count change of delta cells attributed to
// component. A negative delta releases previously observed cells; releasing
// more than a component has observed is an accounting bug and panics.
func (a *Accountant) Observe(component string, delta int64) {
	next := a.perComponent[component] + delta
	if next < 0 {
		panic(fmt.Sprintf("accountant: component %q released %d cells but only %d observed",
			component, -delta, a.perComponent[component]))
	}
	a.perComponent[component] = next
	a.current += delta
	if a.current > a.peak {
		a.peak = a.current
	}
}

// Current returns the live logical cell count.
func (a *Accountant) Current() int64 { return a.current }

// Peak returns the high-water logical cell count since construction.
func (a *Accountant) Peak() int64 { return a.peak }

// Breakdown returns a copy of the live per-component cell counts.
func (a *Accountant) Breakdown() map[string]int64 {
	out := make(map[string]int64, len(a.perComponent))
	for k, v := range a.perComponent {
		out[k] = v
	}
	return out
}

// String renders the live counts, components sorted by name, for diagnostics.
func (a *Accountant) String() string {
	names := make([]string, 0, len(a.perComponent))
	for k := range a.perComponent {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	fmt.Fprintf(&sb, "current=%d peak=%d", a.current, a.peak)
	for _, k := range names {
		fmt.Fprintf(&sb, " %s=%d", k, a.perComponent[k])
	}
	return sb.String()
}

// AssertBound checks peak against Bound(b, t). In debug builds a violation is
// a SpaceBoundExceeded invariant panic; in release builds the check is a
// no-op: in production the envelope is a deployment concern, not a crash.
func (a *Accountant) AssertBound(b, t int) {
	if !rerr.Debug {
		return
	}
	if bound := Bound(b, t); a.peak > bound {
		rerr.Invariant(rerr.SpaceBoundExceeded,
			fmt.Sprintf("peak %d exceeds declared envelope %d (B=%d, T=%d)", a.peak, bound, b, t))
	}
}
