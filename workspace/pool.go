// Package workspace implements the engine's workspace pool: one pre-sized
// buffer, allocated once per evaluation, from which every active component
// borrows a disjoint slice for the duration of its phase. The pool never
// grows after construction; its capacity is c * sqrt(N) with the multiplier
// c split among components by configured shares summing to 1.0.
package workspace

import (
	"fmt"
	"math"

	"github.com/grailbio/rosalind/accountant"
	"github.com/grailbio/rosalind/rerr"
)

// DefaultMultiplier is the default c in the pool's c*sqrt(N) capacity.
const DefaultMultiplier = 16.0

// Option configures NewPool.
type Option func(*poolOpts)

type poolOpts struct {
	multiplier float64
	shares     map[string]float64
	acct       *accountant.Accountant
}

// WithMultiplier overrides the capacity multiplier c.
func WithMultiplier(c float64) Option {
	return func(o *poolOpts) { o.multiplier = c }
}

// WithShare grants component name the given fraction of the pool's capacity.
// The shares across all WithShare options must sum to 1.0.
func WithShare(name string, frac float64) Option {
	return func(o *poolOpts) { o.shares[name] = frac }
}

// WithAccountant wires the pool's acquisitions into acct, one logical cell
// per byte, under the component names passed to Acquire.
func WithAccountant(acct *accountant.Accountant) Option {
	return func(o *poolOpts) { o.acct = acct }
}

type span struct {
	name       string
	start, end int
}

// Pool is a single-owner, fixed-capacity byte arena. It is not thread-safe:
// one evaluation owns one pool.
type Pool struct {
	buf    []byte
	shares map[string]float64
	budget map[string]int // per-component byte budget
	used   map[string]int // per-component bytes currently held
	active []span
	acct   *accountant.Accountant
	owners ownerSet // debug-build overlap detection; zero cost under -tags release
}

// NewPool sizes a pool for a problem of n logical cells: capacity is
// multiplier * sqrt(n) bytes, partitioned among the configured component
// shares. Shares must be configured (at least one WithShare) and must sum to
// 1.0 within a small tolerance.
func NewPool(n uint64, opts ...Option) (*Pool, error) {
	o := poolOpts{multiplier: DefaultMultiplier, shares: make(map[string]float64)}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.shares) == 0 {
		return nil, rerr.E(rerr.InvalidInput, "NewPool", fmt.Errorf("no component shares configured"))
	}
	var sum float64
	for name, frac := range o.shares {
		if frac <= 0 {
			return nil, rerr.E(rerr.InvalidInput, "NewPool", fmt.Errorf("component %q has nonpositive share %g", name, frac))
		}
		sum += frac
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, rerr.E(rerr.InvalidInput, "NewPool", fmt.Errorf("component shares sum to %g, want 1.0", sum))
	}
	capacity := int(o.multiplier * math.Sqrt(float64(n)))
	if capacity < 1 {
		capacity = 1
	}
	budget := make(map[string]int, len(o.shares))
	for name, frac := range o.shares {
		budget[name] = int(frac * float64(capacity))
	}
	return &Pool{
		buf:    make([]byte, capacity),
		shares: o.shares,
		budget: budget,
		used:   make(map[string]int, len(o.shares)),
		acct:   o.acct,
	}, nil
}

// Cap returns the pool's fixed capacity in bytes.
func (p *Pool) Cap() int { return len(p.buf) }

// Budget returns the byte budget granted to component name by its share.
func (p *Pool) Budget(name string) int { return p.budget[name] }

// Acquire hands component name a zeroed n-byte slice of the pool, together
// with a release closure. The caller must invoke release on every exit path
// (the idiomatic shape is `s, release, err := pool.Acquire(...); if err !=
// nil { ... }; defer release()`); the slice must not be retained after
// release returns. Requests that exceed the component's budget or the pool's
// remaining contiguous space fail with WorkspaceExhausted.
func (p *Pool) Acquire(name string, n int) ([]byte, func(), error) {
	if n <= 0 {
		return nil, nil, rerr.E(rerr.InvalidInput, "Acquire", name, fmt.Errorf("nonpositive size %d", n))
	}
	if _, ok := p.budget[name]; !ok {
		return nil, nil, rerr.E(rerr.InvalidInput, "Acquire", name, fmt.Errorf("component has no configured share"))
	}
	if p.used[name]+n > p.budget[name] {
		return nil, nil, rerr.E(rerr.WorkspaceExhausted, "Acquire", name, int64(n))
	}
	start, ok := p.findGap(n)
	if !ok {
		return nil, nil, rerr.E(rerr.WorkspaceExhausted, "Acquire", name, int64(n))
	}
	s := span{name: name, start: start, end: start + n}
	p.owners.claim(p, s)
	p.active = append(p.active, s)
	p.used[name] += n
	if p.acct != nil {
		p.acct.Observe(name, int64(n))
	}
	buf := p.buf[start : start+n : start+n]
	for i := range buf {
		buf[i] = 0
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		p.release(s)
	}
	return buf, release, nil
}

// findGap returns the lowest offset at which n contiguous unowned bytes are
// available. Acquisitions are few (one per component phase), so a linear
// first-fit over the active spans is enough.
func (p *Pool) findGap(n int) (int, bool) {
	off := 0
	for {
		end := off + n
		if end > len(p.buf) {
			return 0, false
		}
		conflict := false
		for _, s := range p.active {
			if off < s.end && s.start < end {
				conflict = true
				if s.end > off {
					off = s.end
				}
				break
			}
		}
		if !conflict {
			return off, true
		}
	}
}

func (p *Pool) release(s span) {
	for i, a := range p.active {
		if a == s {
			p.active = append(p.active[:i], p.active[i+1:]...)
			p.used[s.name] -= s.end - s.start
			if p.acct != nil {
				p.acct.Observe(s.name, -int64(s.end-s.start))
			}
			p.owners.drop(s)
			return
		}
	}
	panic(fmt.Sprintf("workspace: release of unknown span %q [%d, %d)", s.name, s.start, s.end))
}
