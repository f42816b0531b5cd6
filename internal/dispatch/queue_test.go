package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OverwritesOldest(t *testing.T) {
	q := NewQueue[int](3)
	for i := 0; i < 10; i++ {
		q.Send(i)
	}

	var got []int
	for {
		v, ok := q.TryReceive()
		if !ok {
			break
		}
		got = append(got, v)
	}

	assert.Equal(t, []int{7, 8, 9}, got)
	m := q.Metrics()
	assert.Equal(t, int64(10), m.Written)
	assert.Equal(t, int64(7), m.Overwritten)
	assert.Equal(t, int64(3), m.Processed)
}

func TestQueue_SendReportsDrop(t *testing.T) {
	q := NewQueue[string](1)
	assert.False(t, q.Send("a"))
	assert.True(t, q.Send("b"))

	v, ok := q.Receive()
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestQueue_SendAfterCloseIsRejected(t *testing.T) {
	q := NewQueue[int](2)
	q.Send(1)
	q.Close()
	q.Close()

	assert.NotPanics(t, func() { q.Send(2) })
	assert.Equal(t, int64(1), q.Metrics().Rejected)

	v, ok := q.Receive()
	require.True(t, ok, "buffered values MUST survive Close")
	assert.Equal(t, 1, v)

	_, ok = q.Receive()
	assert.False(t, ok)
}

func TestQueue_RunDeliversOnConsumerGoroutine(t *testing.T) {
	q := NewQueue[int](16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, func(v int) {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		})
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			q.Send(v)
		}(i)
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, 5*time.Millisecond)

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run MUST return once the queue is closed")
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3}, got)
}

func TestNewQueue_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { NewQueue[int](0) })
}
