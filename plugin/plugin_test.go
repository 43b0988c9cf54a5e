package plugin

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPlugin counts cells per block starting from a configured base, the
// minimal well-behaved plugin: deterministic, associative merge, bounded
// summaries.
type countingPlugin struct {
	perBlock int64
}

func (p *countingPlugin) Process(boundary Boundary, blockIndex int) (Boundary, Summary, error) {
	base := boundary.(int64)
	return base + p.perBlock, p.perBlock, nil
}

func (p *countingPlugin) Merge(left, right Summary) (Summary, error) {
	return left.(int64) + right.(int64), nil
}

func (p *countingPlugin) InitBoundary(cfg map[string]interface{}) (Boundary, error) {
	base, ok := cfg["base"].(int64)
	if !ok {
		return nil, errors.New("missing base")
	}
	return base, nil
}

func TestRunMergesAcrossBlocks(t *testing.T) {
	p := &countingPlugin{perBlock: 10}
	for _, nBlocks := range []int{1, 2, 7, 64} {
		root, err := Run(nBlocks, p, map[string]interface{}{"base": int64(0)})
		require.NoError(t, err)
		assert.EqualValues(t, int64(nBlocks)*10, root, "T=%d", nBlocks)
	}
}

func TestRunInitBoundaryFailure(t *testing.T) {
	p := &countingPlugin{perBlock: 1}
	_, err := Run(4, p, map[string]interface{}{})
	assert.Error(t, err)
}

type failingPlugin struct{ countingPlugin }

func (p *failingPlugin) Process(boundary Boundary, blockIndex int) (Boundary, Summary, error) {
	if blockIndex == 2 {
		return nil, nil, errors.New("bad block")
	}
	return p.countingPlugin.Process(boundary, blockIndex)
}

func TestRunSurfacesBlockFailures(t *testing.T) {
	p := &failingPlugin{countingPlugin{perBlock: 1}}
	_, err := Run(8, p, map[string]interface{}{"base": int64(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 2")
}
