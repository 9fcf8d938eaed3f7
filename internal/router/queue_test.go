package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/medibox/internal/store"
)

func TestChangeQueue_FIFO(t *testing.T) {
	q := newChangeQueue()

	for _, p := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(store.Change{Path: p}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Path)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestChangeQueue_SignalsAvailability(t *testing.T) {
	q := newChangeQueue()
	q.Enqueue(store.Change{Path: "a"})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected signal after enqueue")
	}
}

func TestChangeQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newChangeQueue()
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(store.Change{Path: "a"}))

	select {
	case _, open := <-q.Wait():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("closed queue should wake waiters")
	}
}

func TestChangeQueue_Drain(t *testing.T) {
	q := newChangeQueue()
	q.Enqueue(store.Change{Path: "a"})
	q.Enqueue(store.Change{Path: "b"})

	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())
}
