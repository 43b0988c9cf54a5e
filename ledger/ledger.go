// Package ledger implements the compressed evaluator's Progress Ledger: a
// 2-bit-per-block vector recording, for each block's position in the
// implicit merge tree, whether its left and right child have finished
// merging.
package ledger

// Ledger is a 2*T-bit vector packed into 64-bit words, two bits per block:
// bit 2*i is block i's left-child-done flag, bit 2*i+1 is its right-child-done
// flag. Bits are set monotonically and never cleared; that invariant is
// enforced by the evaluator, not by this package.
type Ledger struct {
	words []uint64
	n     int // number of blocks (T)
}

// New allocates a Ledger for n blocks, all bits clear.
func New(n int) *Ledger {
	nWords := (2*n + 63) / 64
	return &Ledger{words: make([]uint64, nWords), n: n}
}

// Len returns the number of blocks this ledger tracks.
func (l *Ledger) Len() int { return l.n }

func wordIndex(bit int) (word int, mask uint64) {
	return bit / 64, uint64(1) << uint(bit%64)
}

// Left reports whether block i's left-child-done bit is set.
func (l *Ledger) Left(i int) bool { return l.bit(2 * i) }

// Right reports whether block i's right-child-done bit is set.
func (l *Ledger) Right(i int) bool { return l.bit(2*i + 1) }

func (l *Ledger) bit(b int) bool {
	w, mask := wordIndex(b)
	return l.words[w]&mask != 0
}

// SetLeft sets block i's left-child-done bit.
func (l *Ledger) SetLeft(i int) { l.set(2 * i) }

// SetRight sets block i's right-child-done bit.
func (l *Ledger) SetRight(i int) { l.set(2*i + 1) }

func (l *Ledger) set(b int) {
	w, mask := wordIndex(b)
	l.words[w] |= mask
}

// Bytes exposes the packed words as a byte slice's worth of memory, so
// callers can charge the ledger's 2*T bits (rounded up to words)
// against the space accountant without the ledger itself depending on the
// accountant package.
func (l *Ledger) Bytes() int { return len(l.words) * 8 }
