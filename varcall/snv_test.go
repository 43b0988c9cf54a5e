package varcall

import (
	"strings"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Twenty reads all carrying G over an A reference column must produce
// exactly one high-confidence homozygous-alt call at that column.
func TestHomozygousSNV(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("A", 100))
	var recs []*sam.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, newRecord("r", samRef, 45, 30, "AAAAAGAAAA", matchCigar(10)))
	}
	got, summary := callAll(t, ref, recs, 0, 100, DefaultOpts)
	require.Len(t, got, 1)
	v := got[0]
	assert.Equal(t, "ref", v.Chrom)
	assert.EqualValues(t, 50, v.Pos)
	assert.Equal(t, "A", v.Ref)
	assert.Equal(t, "G", v.Alt)
	assert.Equal(t, 1.0, v.AlleleFraction)
	assert.Equal(t, GenotypeAA, v.Genotype)
	assert.Equal(t, 20, v.Depth)
	assert.InDelta(t, 632.3, v.Qual, 0.5)
	assert.Equal(t, 60, v.GenotypeQual)
	assert.EqualValues(t, 1, summary.Variants)
	assert.EqualValues(t, 100, summary.Columns)
}

func TestHeterozygousSNV(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("A", 100))
	var recs []*sam.Record
	for i := 0; i < 10; i++ {
		base := "AAAAAGAAAA"
		if i%2 == 0 {
			base = "AAAAAAAAAA"
		}
		recs = append(recs, newRecord("r", samRef, 45, 30, base, matchCigar(10)))
	}
	got, _ := callAll(t, ref, recs, 0, 100, DefaultOpts)
	require.Len(t, got, 1)
	assert.Equal(t, GenotypeRA, got[0].Genotype)
	assert.Equal(t, 0.5, got[0].AlleleFraction)
}

func TestBelowMinDepthIsSilent(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("A", 100))
	var recs []*sam.Record
	for i := 0; i < 3; i++ {
		recs = append(recs, newRecord("r", samRef, 45, 30, "AAAAAGAAAA", matchCigar(10)))
	}
	got, _ := callAll(t, ref, recs, 0, 100, DefaultOpts)
	assert.Empty(t, got)
}

func TestNoEvidenceNoVariants(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("ACGT", 25))
	var recs []*sam.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, newRecord("r", samRef, 12, 30, "ACGTACGTACGT", matchCigar(12)))
	}
	got, _ := callAll(t, ref, recs, 0, 100, DefaultOpts)
	assert.Empty(t, got)
}

func TestMapqThresholdSkipsReads(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("A", 100))
	var recs []*sam.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, newRecord("r", samRef, 45, 5, "AAAAAGAAAA", matchCigar(10)))
	}
	opts := DefaultOpts
	opts.MapqThreshold = 10
	got, _ := callAll(t, ref, recs, 0, 100, opts)
	assert.Empty(t, got)
}

func TestReadsOutsideRegionSkippedSilently(t *testing.T) {
	ref, samRef := loadRef(t, strings.Repeat("A", 100))
	var recs []*sam.Record
	for i := 0; i < 20; i++ {
		recs = append(recs, newRecord("r", samRef, 60, 30, "AAAAAGAAAA", matchCigar(10)))
	}
	got, _ := callAll(t, ref, recs, 0, 50, DefaultOpts)
	assert.Empty(t, got)
}
