package varcall

import (
	"io"
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/rosalind/evaluator"
	"github.com/grailbio/rosalind/twobit"
	"github.com/stretchr/testify/require"
)

type sliceReader struct {
	recs []*sam.Record
	i    int
}

func (s *sliceReader) Read() (*sam.Record, error) {
	if s.i >= len(s.recs) {
		return nil, io.EOF
	}
	r := s.recs[s.i]
	s.i++
	return r, nil
}

func loadRef(t *testing.T, seq string) (*twobit.Reference, *sam.Reference) {
	ref, err := twobit.Load(strings.NewReader(">ref\n" + seq + "\n"))
	require.NoError(t, err)
	samRef, err := sam.NewReference("ref", "", "", len(seq), nil, nil)
	require.NoError(t, err)
	return ref, samRef
}

func newRecord(name string, ref *sam.Reference, pos int, mapq byte, seq string, cigar sam.Cigar) *sam.Record {
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    mapq,
		Cigar:   cigar,
		MatePos: -1,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    make([]byte, len(seq)),
	}
}

func matchCigar(n int) sam.Cigar {
	return sam.Cigar{sam.NewCigarOp(sam.CigarMatch, n)}
}

// callAll drives a Caller over its whole region and returns the collected
// variants in emission order.
func callAll(t *testing.T, ref *twobit.Reference, recs []*sam.Record, regionStart, regionEnd int64, opts Opts) ([]*Variant, CallSummary) {
	var got []*Variant
	sink := func(v *Variant) error {
		clone := *v
		got = append(got, &clone)
		return nil
	}
	caller, err := NewCaller(ref, regionStart, regionEnd, opts, &sliceReader{recs: recs}, sink, nil, nil)
	require.NoError(t, err)
	ev := evaluator.New(caller.NumBlocks())
	root, _, err := ev.Run(caller.InitBoundary(), caller)
	require.NoError(t, err)
	return got, root.(CallSummary)
}
