package varcall

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callVCF(t *testing.T, refSeq string, recs []*sam.Record, blockSize int) ([]byte, CallSummary) {
	ref, _ := loadRef(t, refSeq)
	var buf bytes.Buffer
	vw, err := newVCFWriter(&buf, ref, "sample")
	require.NoError(t, err)
	opts := DefaultOpts
	opts.BlockSize = blockSize
	caller, err := NewCaller(ref, 0, int64(len(refSeq)), opts, &sliceReader{recs: recs},
		func(v *Variant) error { return vw.write(v) }, nil, nil)
	require.NoError(t, err)
	ev := evaluator.New(caller.NumBlocks())
	root, _, err := ev.Run(caller.InitBoundary(), caller)
	require.NoError(t, err)
	require.NoError(t, vw.Flush())
	return buf.Bytes(), root.(CallSummary)
}

// The emitted VCF must be byte-identical across variant block sizes (spec
// section 8, scenario 5), including when reads span many block edges and
// indels sit exactly on them.
func TestBlockSizePartitionInvariance(t *testing.T) {
	refSeq := strings.Repeat("A", 100)
	_, samRef := loadRef(t, refSeq)
	cigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 8),
		sam.NewCigarOp(sam.CigarInsertion, 2),
		sam.NewCigarOp(sam.CigarMatch, 8),
	}
	var recs []*sam.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, newRecord("r", samRef, 45, 30, "AAAAAGAAAA", matchCigar(10)))
	}
	for i := 0; i < 8; i++ {
		// 8M2I8M starting at 56: the insertion anchor lands at 63, the
		// edge of a 16-wide block.
		recs = append(recs, newRecord("i", samRef, 56, 30, "AAAAAAAAGGAAAAAAAA", cigar))
	}

	out16, sum16 := callVCF(t, refSeq, recs, 16)
	out64, sum64 := callVCF(t, refSeq, recs, 64)
	out7, sum7 := callVCF(t, refSeq, recs, 7)
	assert.Equal(t, out16, out64)
	assert.Equal(t, out16, out7)
	assert.Equal(t, sum16.Fingerprint, sum64.Fingerprint)
	assert.Equal(t, sum16.Fingerprint, sum7.Fingerprint)
	assert.Equal(t, sum16.Variants, sum64.Variants)
}

func TestRepeatedRunsAreByteIdentical(t *testing.T) {
	refSeq := strings.Repeat("A", 64)
	_, samRef := loadRef(t, refSeq)
	var recs []*sam.Record
	for i := 0; i < 12; i++ {
		recs = append(recs, newRecord("r", samRef, 20, 30, "AACAAAAGAA", matchCigar(10)))
	}
	a, _ := callVCF(t, refSeq, recs, 8)
	b, _ := callVCF(t, refSeq, recs, 8)
	assert.Equal(t, a, b)
}
