package syncx

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestFuture_Await(t *testing.T) {
	var order = make([]int, 0, 4)
	f := NewFuture[int]()
	order = append(order, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		order = append(order, 2)
		f.Resolve(3)

		// Make sure that subsequent calls don't actually do anything
		f.Resolve(5)
		f.ResolveErr(6, errors.New("ignored"))
	}()
	val, err := f.Await()
	assert.NoError(t, err)
	order = append(order, val)
	val, _ = f.Await()
	assert.Equal(t, 3, val, "The same value should be returned again with Await")
	order = append(order, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, order, "Processing should happen in the expected order")
	assert.True(t, f.Resolved())
}

func TestFuture_Await_Blocking(t *testing.T) {
	var (
		f       = NewFuture[int]()
		process = func(f Future[int]) {
			time.Sleep(150 * time.Millisecond)
			f.ResolveErr(5, nil)
		}
	)

	go process(f)
	for i := 0; i < 3; i++ {
		val, err := f.Await(40 * time.Millisecond)
		assert.Equal(t, 0, val)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	val, err := f.Await()
	assert.Equal(t, 5, val)
	assert.NoError(t, err)
}

func TestFuture_AwaitCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFuture[string]().AwaitCtx(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	testErr := errors.New("resolved with error")
	val, err := StaticFuture("value", testErr).AwaitCtx(context.Background())
	assert.Equal(t, "value", val)
	assert.ErrorIs(t, err, testErr)
}
