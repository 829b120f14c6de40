package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	q := NewQueue(4)

	ok := q.TryEnqueue(RawSample{Code: 0x3c, At: time.Now()})
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())

	s := <-q.Samples()
	assert.Equal(t, byte(0x3c), s.Code)
	assert.Equal(t, 0, q.Len())
}

func TestQueueOverflowDropsNewestNeverBlocks(t *testing.T) {
	const capacity = 3
	const produced = 10
	q := NewQueue(capacity)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < produced; i++ {
			q.TryEnqueue(RawSample{Code: byte(i)})
		}
	}()

	// The producer must finish immediately even with no consumer attached
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryEnqueue blocked on a full queue")
	}

	assert.Equal(t, capacity, q.Len())
	assert.Equal(t, uint64(produced-capacity), q.Dropped())

	// The oldest samples are the ones retained
	for i := 0; i < capacity; i++ {
		s := <-q.Samples()
		assert.Equal(t, byte(i), s.Code)
	}
}

func TestQueueTryEnqueueReportsDrop(t *testing.T) {
	q := NewQueue(1)

	assert.True(t, q.TryEnqueue(RawSample{Code: 1}))
	assert.False(t, q.TryEnqueue(RawSample{Code: 2}))
	assert.Equal(t, uint64(1), q.Dropped())
}
