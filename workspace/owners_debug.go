//go:build !release
// +build !release

package workspace

import (
	"fmt"

	"blainsmith.com/go/seahash"
)

// ownerSet is the debug-build double-acquisition detector: each active span
// is recorded under a seahash fingerprint of its (component, range)
// identity, and any byte-range overlap between two live spans panics. The
// check recomputes overlap independently instead of trusting Pool.active.
type ownerSet struct {
	spans map[uint64]span
}

func fingerprint(s span) uint64 {
	return seahash.Sum64([]byte(fmt.Sprintf("%s:%d:%d", s.name, s.start, s.end)))
}

func (o *ownerSet) claim(p *Pool, s span) {
	if o.spans == nil {
		o.spans = make(map[uint64]span)
	}
	for _, held := range o.spans {
		if s.start < held.end && held.start < s.end {
			panic(fmt.Sprintf("workspace: overlapping acquisition %q [%d, %d) vs held %q [%d, %d)",
				s.name, s.start, s.end, held.name, held.start, held.end))
		}
	}
	o.spans[fingerprint(s)] = s
}

func (o *ownerSet) drop(s span) {
	delete(o.spans, fingerprint(s))
}
