package queue

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func push[T any](q *Queue[T], val T) error {
	return q.PushFunc(func() T {
		return val
	})
}

func TestNewQueue(t *testing.T) {
	q := NewQueue[int]()
	assert.Equal(t, 0, q.Len())

	require.NoError(t, push(q, 1))
	require.NoError(t, push(q, 2))
	assert.Equal(t, 2, q.Len())

	val, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, val)
	val, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, val)
	assert.Equal(t, 0, q.Len())
}

func TestNewQueue_NegativeCapacity(t *testing.T) {
	assert.Panics(t, func() {
		NewQueue[int](-1)
	})
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int]()
	require.NoError(t, push(q, 1))
	q.Close()
	q.Close()
	assert.ErrorIs(t, q.PushFunc(func() int {
		t.Error("Build should not be called on a closed queue")
		return 2
	}), ErrClosed)

	val, ok := q.Pop()
	assert.True(t, ok, "Values queued before closing should still be consumed")
	assert.Equal(t, 1, val)
	_, ok = q.Pop()
	assert.False(t, ok, "Pop should not block on a closed, empty queue")
}

func TestQueue_Pop_Waits(t *testing.T) {
	q := NewQueue[string]()
	result := make(chan string, 1)
	go func() {
		val, _ := q.Pop()
		result <- val
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, push(q, "hello"))
	select {
	case val := <-result:
		assert.Equal(t, "hello", val)
	case <-time.After(time.Second):
		t.Fatal("Pop should have been woken by PushFunc")
	}
}

func TestQueue_Close_ReleasesConsumer(t *testing.T) {
	q := NewQueue[int]()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Close should release a waiting consumer")
	}
}

func TestQueue_Bounded(t *testing.T) {
	q := NewQueue[int](2)
	require.NoError(t, push(q, 1))
	require.NoError(t, push(q, 2))

	pushed := make(chan error, 1)
	go func() {
		pushed <- push(q, 3)
	}()
	select {
	case <-pushed:
		t.Fatal("PushFunc should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	val, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, val)
	select {
	case err := <-pushed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PushFunc should proceed once there is room")
	}
	assert.Equal(t, 2, q.Len())
}

func TestQueue_Bounded_CloseReleasesProducer(t *testing.T) {
	q := NewQueue[int](1)
	require.NoError(t, push(q, 1))
	pushed := make(chan error, 1)
	go func() {
		pushed <- push(q, 2)
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close should release a blocked producer")
	}
}

func TestQueue_Drain(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, push(q, i))
	}
	assert.Equal(t, 5, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Drain())
}

func TestQueue_PushFunc_Order(t *testing.T) {
	const (
		producers = 8
		perProd   = 250
	)
	var (
		q   = NewQueue[int]()
		seq int
		wg  sync.WaitGroup
	)
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProd; j++ {
				assert.NoError(t, q.PushFunc(func() int {
					seq++
					return seq
				}))
			}
		}()
	}
	wg.Wait()
	q.Close()

	var last int
	for {
		val, ok := q.Pop()
		if !ok {
			break
		}
		assert.Equal(t, last+1, val, "Stamps should follow queue order")
		last = val
	}
	assert.Equal(t, producers*perProd, last)
}
