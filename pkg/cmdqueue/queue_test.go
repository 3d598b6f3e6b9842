package cmdqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

func TestFIFOOrder(t *testing.T) {
	q := New()
	in := []direction.Direction{direction.Forward, direction.Left, direction.Forward, direction.Right}
	for _, d := range in {
		q.Enqueue(d)
	}
	require.Equal(t, len(in), q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, direction.Forward, head)
	assert.Equal(t, len(in), q.Len(), "Peek must not remove")

	for _, expected := range in {
		d, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, expected, d)
	}
	assert.Equal(t, 0, q.Len())
}

func TestDequeueEmpty(t *testing.T) {
	q := New()
	_, err := q.Dequeue()
	assert.ErrorIs(t, err, ErrEmptyQueue)

	_, ok := q.Peek()
	assert.False(t, ok)

	var zero Queue
	_, err = zero.Dequeue()
	assert.ErrorIs(t, err, ErrEmptyQueue)
	zero.Enqueue(direction.Right)
	d, err := zero.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, direction.Right, d)
}

func TestGrowAcrossWrap(t *testing.T) {
	q := New()
	var expected []direction.Direction
	// Move the head part way round the ring before forcing a grow.
	for i := 0; i < 5; i++ {
		q.Enqueue(direction.Backward)
		_, err := q.Dequeue()
		require.NoError(t, err)
	}
	for i := 0; i < 3*initialSize+1; i++ {
		d := direction.FromIndex(i)
		q.Enqueue(d)
		expected = append(expected, d)
	}
	assert.Equal(t, expected, q.Snapshot())
	for _, e := range expected {
		d, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, e, d)
	}
}

func TestClear(t *testing.T) {
	q := New()
	q.Enqueue(direction.Left)
	q.Enqueue(direction.Right)
	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Snapshot())
}

func TestConcurrentProducers(t *testing.T) {
	q := New()
	const producers, each = 4, 250
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				q.Enqueue(direction.FromIndex(p))
			}
		}(p)
	}
	got := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if _, err := q.Dequeue(); err == nil {
			got++
			continue
		}
		select {
		case <-done:
			got += q.Len()
			assert.Equal(t, producers*each, got)
			return
		default:
		}
	}
}
