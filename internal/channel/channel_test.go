package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrySendTryReceive_FIFO(t *testing.T) {
	ch := New(0)

	require.True(t, ch.TrySend(Payload{SrcPort: 1}))
	require.True(t, ch.TrySend(Payload{SrcPort: 2}))

	v1, ok := ch.TryReceive()
	require.True(t, ok)
	assert.EqualValues(t, 1, v1.SrcPort)

	v2, ok := ch.TryReceive()
	require.True(t, ok)
	assert.EqualValues(t, 2, v2.SrcPort)

	_, ok = ch.TryReceive()
	assert.False(t, ok)
}

func TestTrySend_DropsOnOverrunAndCounts(t *testing.T) {
	ch := New(1)

	require.True(t, ch.TrySend(Payload{SrcPort: 1}))
	assert.False(t, ch.TrySend(Payload{SrcPort: 2}), "second send should be dropped at capacity 1")
	assert.EqualValues(t, 1, ch.Dropped())
}

func TestClose_RejectsFurtherSends(t *testing.T) {
	ch := New(0)
	assert.True(t, ch.Close())
	assert.False(t, ch.Close(), "closing twice reports false")
	assert.False(t, ch.TrySend(Payload{SrcPort: 1}))
}

func TestClear_RemovesQueuedItemsAndReturnsCount(t *testing.T) {
	ch := New(0)
	ch.TrySend(Payload{SrcPort: 1})
	ch.TrySend(Payload{SrcPort: 2})

	assert.Equal(t, 2, ch.Clear())
	assert.Equal(t, 0, ch.Size())
}
