package fmindex

import (
	"github.com/grailbio/rosalind/rerr"
	"github.com/grailbio/rosalind/twobit"
)

// Index is a blocked FM-index: a Burrows-Wheeler transform of a reference
// (plus sentinel), a six-way C-array, per-block rank checkpoints, and a
// sparsely sampled suffix array. Index is immutable and safe for concurrent
// read-only use once Build or Open returns.
type Index struct {
	bwt          []byte // one symbol code (0..5) per row
	n            uint64 // rows = reference length + 1
	textLen      uint64 // reference length, n-1
	cArray       [numSymbols]uint64
	blockSize    int
	checkpoints  [][numSymbols]uint32 // checkpoints[b][sym] = count of sym in bwt[0:b*blockSize)
	samplingRate int
	sampledSA    []int32 // length n; -1 where the row's SA value is not sampled
	mapped       []byte  // non-nil iff the index aliases an Open'd mmap
}

const (
	defaultBlockSize    = 512
	defaultSamplingRate = 16
)

// Option configures Build.
type Option func(*buildOpts)

type buildOpts struct {
	blockSize    int
	samplingRate int
}

// WithBlockSize sets the rank-checkpoint spacing; smaller values trade index size for faster
// Rank queries.
func WithBlockSize(b int) Option {
	return func(o *buildOpts) { o.blockSize = b }
}

// WithSamplingRate sets the suffix-array sampling density used by Locate.
func WithSamplingRate(s int) Option {
	return func(o *buildOpts) { o.samplingRate = s }
}

// Build constructs a blocked FM-index over ref.
func Build(ref *twobit.Reference, opts ...Option) (*Index, error) {
	o := buildOpts{blockSize: defaultBlockSize, samplingRate: defaultSamplingRate}
	for _, opt := range opts {
		opt(&o)
	}
	n := ref.Len()
	if n == 0 {
		return nil, rerr.E(rerr.InvalidInput, "Build", "empty reference")
	}

	text := make([]byte, n+1)
	for i := uint64(0); i < n; i++ {
		text[i] = refSymbol(ref, i)
	}
	text[n] = symSentinel

	sa := buildSuffixArray(text)

	rows := uint64(len(sa))
	bwt := make([]byte, rows)
	for i, s := range sa {
		if s == 0 {
			bwt[i] = symSentinel
		} else {
			bwt[i] = text[s-1]
		}
	}

	var total [numSymbols]uint64
	for _, s := range bwt {
		total[s]++
	}
	var cArray [numSymbols]uint64
	var running uint64
	for s := 0; s < numSymbols; s++ {
		cArray[s] = running
		running += total[s]
	}

	blockSize := o.blockSize
	if blockSize < 1 {
		blockSize = defaultBlockSize
	}
	nBlocks := int((rows + uint64(blockSize) - 1) / uint64(blockSize))
	checkpoints := make([][numSymbols]uint32, nBlocks+1)
	var running2 [numSymbols]uint32
	for b := 0; b <= nBlocks; b++ {
		checkpoints[b] = running2
		start := uint64(b) * uint64(blockSize)
		end := start + uint64(blockSize)
		if end > rows {
			end = rows
		}
		for i := start; i < end; i++ {
			running2[bwt[i]]++
		}
	}

	samplingRate := o.samplingRate
	if samplingRate < 1 {
		samplingRate = defaultSamplingRate
	}
	sampledSA := make([]int32, rows)
	for i := range sampledSA {
		if sa[i]%int32(samplingRate) == 0 {
			sampledSA[i] = sa[i]
		} else {
			sampledSA[i] = -1
		}
	}

	return &Index{
		bwt:          bwt,
		n:            rows,
		textLen:      n,
		cArray:       cArray,
		blockSize:    blockSize,
		checkpoints:  checkpoints,
		samplingRate: samplingRate,
		sampledSA:    sampledSA,
	}, nil
}

// Len returns the reference length indexed (excluding the sentinel row).
func (ix *Index) Len() uint64 { return ix.textLen }

// Rows returns the total BWT row count, textLen+1.
func (ix *Index) Rows() uint64 { return ix.n }

// FullRange returns the SA range matching every suffix, the starting point
// for a backward search.
func (ix *Index) FullRange() Range { return Range{0, ix.n} }

// Rank returns the number of occurrences of sym in bwt[0:i).
func (ix *Index) Rank(sym byte, i uint64) uint64 {
	if i > ix.n {
		panic("fmindex: Rank index exceeds row count")
	}
	block := i / uint64(ix.blockSize)
	count := uint64(ix.checkpoints[block][sym])
	start := block * uint64(ix.blockSize)
	for j := start; j < i; j++ {
		if ix.bwt[j] == sym {
			count++
		}
	}
	return count
}

// LF maps BWT row i to the row of the suffix one character shorter, the
// standard last-to-first column mapping.
func (ix *Index) LF(i uint64) uint64 {
	sym := ix.bwt[i]
	return ix.cArray[sym] + ix.Rank(sym, i)
}

// BackwardExtend narrows r by prepending sym: the new range covers exactly
// the rows whose suffix is sym followed by a suffix the old range covered.
func (ix *Index) BackwardExtend(r Range, sym byte) Range {
	return Range{
		Lo: ix.cArray[sym] + ix.Rank(sym, r.Lo),
		Hi: ix.cArray[sym] + ix.Rank(sym, r.Hi),
	}
}

// Locate returns the reference position corresponding to BWT row i, walking
// LF-mappings until a sampled row is reached.
func (ix *Index) Locate(i uint64) uint64 {
	steps := uint64(0)
	for ix.sampledSA[i] < 0 {
		i = ix.LF(i)
		steps++
	}
	pos := uint64(ix.sampledSA[i]) + steps
	if pos >= ix.n {
		pos -= ix.n
	}
	return pos
}
