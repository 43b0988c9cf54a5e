// Package twobit implements the reference's 2-bit packed representation: an
// immutable sequence over {A,C,G,T,N} stored as 2 bits per base plus a
// parallel ambiguity bitmap for N positions.
//
// The packed layout is compatible with
// github.com/grailbio/bio/biosimd.ASCIITo2bit, so buffers can be handed to
// that package's consumers. Only the portable table-driven path is
// implemented here; the engine budgets its dynamic working set, not
// reference-construction throughput.
package twobit

// code maps 'A'/'a'->0, 'C'/'c'->1, 'G'/'g'->2, 'T'/'t'->3, anything else->0
// (disambiguated by the caller via the ambiguity bitmap).
var asciiToCode = buildASCIIToCode()

func buildASCIIToCode() [256]byte {
	var t [256]byte
	t['A'], t['a'] = 0, 0
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3
	return t
}

var codeToASCII = [4]byte{'A', 'C', 'G', 'T'}

var isACGT = buildIsACGT()

func buildIsACGT() [256]bool {
	var t [256]bool
	for _, c := range []byte("ACGTacgt") {
		t[c] = true
	}
	return t
}

// packASCII 2-bit packs src (upper- or lower-case A/C/G/T only meaningful;
// callers must consult the ambiguity bitmap for any other byte) into dst,
// which must have length (len(src)+3)/4. This mirrors
// biosimd.ASCIITo2bit's bit layout: base at position p occupies bits
// 2*(p%4) .. 2*(p%4)+1 of dst[p/4].
func packASCII(dst, src []byte) {
	n := len(src)
	nFull := n >> 2
	for i := 0; i < nFull; i++ {
		dst[i] = asciiToCode[src[4*i]] |
			asciiToCode[src[4*i+1]]<<2 |
			asciiToCode[src[4*i+2]]<<4 |
			asciiToCode[src[4*i+3]]<<6
	}
	if rem := n & 3; rem != 0 {
		var b byte
		for j := 0; j < rem; j++ {
			b |= asciiToCode[src[4*nFull+j]] << uint(2*j)
		}
		dst[nFull] = b
	}
}

// unpackBase returns the base code (0..3) at logical position pos within a
// packed 2-bit buffer.
func unpackBase(packed []byte, pos uint64) byte {
	b := packed[pos>>2]
	shift := uint(2 * (pos & 3))
	return (b >> shift) & 3
}

// EncodeBase returns the 2-bit code for an ASCII 'A'/'C'/'G'/'T' base
// (case-insensitive). Its result is meaningless for any other input byte;
// callers must check IsACGT first.
func EncodeBase(ascii byte) byte { return asciiToCode[ascii] }

// DecodeBase returns the canonical upper-case ASCII base for a 2-bit code.
func DecodeBase(code byte) byte { return codeToASCII[code&3] }

// IsACGT reports whether ascii is one of 'A','C','G','T' in either case.
func IsACGT(ascii byte) bool { return isACGT[ascii] }
