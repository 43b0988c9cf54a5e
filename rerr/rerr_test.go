package rerr

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEComposition(t *testing.T) {
	e := E(InvalidInput, "Load", "ref.fa", int64(7), errors.New("boom"))
	assert.Equal(t, InvalidInput, e.Kind)
	assert.Equal(t, "Load", e.Op)
	assert.Equal(t, "ref.fa", e.Path)
	assert.EqualValues(t, 7, e.Record)
	assert.Contains(t, e.Error(), "invalid input")
	assert.Contains(t, e.Error(), "ref.fa")
	assert.Contains(t, e.Error(), "record 7")
	assert.Contains(t, e.Error(), "boom")
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := E(UnsortedInput, "varcall")
	wrapped := errors.Wrap(base, "outer context")
	assert.True(t, IsKind(wrapped, UnsortedInput))
	assert.False(t, IsKind(wrapped, InputTooLarge))
	assert.False(t, IsKind(nil, UnsortedInput))
	assert.False(t, IsKind(errors.New("plain"), UnsortedInput))
}

func TestInvariantPanicsWithInternalKind(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		e, ok := r.(*Error)
		require.True(t, ok)
		assert.Equal(t, LedgerCorruption, e.Kind)
	}()
	Invariant(LedgerCorruption, "test")
}

func TestInvariantRejectsUserKinds(t *testing.T) {
	assert.Panics(t, func() { Invariant(InvalidInput, "not internal") })
}
