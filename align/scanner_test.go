package align

import (
	"strings"
	"testing"

	"github.com/grailbio/rosalind/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(s *Scanner) ([]Read, error) {
	var reads []Read
	var r Read
	for s.Scan(&r) {
		reads = append(reads, Read{Name: r.Name, Seq: append([]byte(nil), r.Seq...), Qual: append([]byte(nil), r.Qual...)})
	}
	return reads, s.Err()
}

func TestScanFASTQ(t *testing.T) {
	in := "@r1 extra stuff\nACGT\n+\nIIII\n@r2\nGGTTAA\n+r2\n!!!!!!\n"
	reads, err := scanAll(NewScanner(strings.NewReader(in)))
	require.NoError(t, err)
	require.Len(t, reads, 2)
	assert.Equal(t, "r1", reads[0].Name)
	assert.Equal(t, "ACGT", string(reads[0].Seq))
	assert.Equal(t, []byte{40, 40, 40, 40}, reads[0].Qual)
	assert.Equal(t, "r2", reads[1].Name)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, reads[1].Qual)
}

func TestScanPlainLines(t *testing.T) {
	in := "ACGTACGT\nGGGTTTAA\n\nTTAACC\n"
	reads, err := scanAll(NewScanner(strings.NewReader(in)))
	require.NoError(t, err)
	require.Len(t, reads, 3)
	assert.Equal(t, "ACGTACGT", string(reads[0].Seq))
	assert.Nil(t, reads[0].Qual)
	assert.Equal(t, "read3", reads[2].Name)
}

func TestScanRejectsBadSymbol(t *testing.T) {
	_, err := scanAll(NewScanner(strings.NewReader("ACGTX\n")))
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.InvalidInput))
}

func TestScanRejectsTruncatedFASTQ(t *testing.T) {
	_, err := scanAll(NewScanner(strings.NewReader("@r1\nACGT\n+\n")))
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.InvalidInput))
}

func TestScanRejectsLengthMismatch(t *testing.T) {
	_, err := scanAll(NewScanner(strings.NewReader("@r1\nACGT\n+\nIII\n")))
	require.Error(t, err)
	assert.True(t, rerr.IsKind(err, rerr.InvalidInput))
}

func TestScanAcceptsN(t *testing.T) {
	reads, err := scanAll(NewScanner(strings.NewReader("ACGTNNACGT\n")))
	require.NoError(t, err)
	require.Len(t, reads, 1)
}
