package twobit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSingleContig(t *testing.T) {
	fa := ">chr1\nACGTACGT\nACGT\n"
	ref, err := Load(strings.NewReader(fa))
	require.NoError(t, err)
	assert.EqualValues(t, 12, ref.Len())
	s, err := ref.Slice(0, 12)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTACGT", s)
}

func TestLoadMultiContigAndAmbiguity(t *testing.T) {
	fa := ">chr1 a comment\nACGTN\n>chr2\nTTNNGG\n"
	ref, err := Load(strings.NewReader(fa))
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1", "chr2"}, []string{ref.Contigs()[0].Name, ref.Contigs()[1].Name})
	l1, err := ref.ContigLen("chr1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, l1)
	assert.True(t, ref.IsAmbiguous(4))  // chr1's 'N'
	assert.False(t, ref.IsAmbiguous(3)) // chr1's 'T'
	assert.True(t, ref.IsAmbiguous(5+2))
	s, err := ref.Slice(0, ref.Len())
	require.NoError(t, err)
	assert.Equal(t, "ACGTNTTNNGG", s)
}

func TestLoadRejectsDataBeforeHeader(t *testing.T) {
	_, err := Load(strings.NewReader("ACGT\n"))
	assert.Error(t, err)
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPackUnalignedOffsets(t *testing.T) {
	// Exercise the packInto() boundary-alignment path across contigs whose
	// combined lengths are not multiples of 4.
	fa := ">a\nACG\n>b\nTACGT\n>c\nA\n"
	ref, err := Load(strings.NewReader(fa))
	require.NoError(t, err)
	s, err := ref.Slice(0, ref.Len())
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTA", s)
}
