package dispatch

import (
	"errors"
	"github.com/saylorsolutions/pvdispatch/slogx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testCategories = []Category{CategoryMetadata, CategoryMonitor, CategoryGetPut}

func TestNew_Defaults(t *testing.T) {
	d := testDispatcher(t)
	assert.Equal(t, StateRunning, d.State())
	assert.Equal(t, DefaultCategories(), d.Categories())
	assert.True(t, d.IsAlive())
	assert.NotEmpty(t, d.ID())
	for _, cat := range DefaultCategories() {
		w, err := d.Worker(cat)
		require.NoError(t, err)
		assert.True(t, w.IsAlive())
		assert.Equal(t, cat, w.Category())
	}
	_, err := d.Worker("bogus")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := map[string]Option{
		"No categories":        WithCategories(),
		"Duplicate categories": WithCategories(CategoryMonitor, CategoryMonitor),
		"Empty category":       WithCategories(""),
		"Negative capacity":    WithQueueCapacity(-1),
		"Nil thread factory":   WithThreadFactory(nil),
	}
	for name, opt := range tests {
		t.Run(name, func(t *testing.T) {
			d, err := New(opt)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, d)
		})
	}
}

func TestDispatcher_ThreadFactory(t *testing.T) {
	var (
		mux      sync.Mutex
		launched []Category
	)
	d := testDispatcher(t, WithCategories(testCategories...), WithThreadFactory(func(category Category, run func()) {
		mux.Lock()
		launched = append(launched, category)
		mux.Unlock()
		LockedOSThreads(category, run)
	}))
	assert.ElementsMatch(t, testCategories, launched)
	ran := make(chan struct{})
	require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error {
		close(ran)
		return nil
	}))
	select {
	case <-ran:
	case <-time.After(testWaitTimeout):
		t.Fatal("Callback should run on a locked OS thread worker")
	}
}

func TestDispatcher_Dispatch_UnknownCategory(t *testing.T) {
	d := testDispatcher(t, WithCategories(testCategories...))
	err := d.Dispatch(CategoryUtility, func(...Param) error { return nil })
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Contains(t, err.Error(), "utility")
}

func TestDispatcher_Dispatch_NilCallback(t *testing.T) {
	d := testDispatcher(t)
	assert.NoError(t, d.Dispatch(CategoryMonitor, nil, "ignored"))
	assert.NoError(t, d.Dispatch("bogus", nil), "A nil callback is a no-op before any lookup")
	w, err := d.Worker(CategoryMonitor)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), w.Stats().Enqueued, "No work item should be created for a nil callback")
}

func TestDispatcher_Dispatch_Params(t *testing.T) {
	var (
		d        = testDispatcher(t)
		received = make(chan []Param, 1)
	)
	require.NoError(t, d.Dispatch(CategoryGetPut, func(params ...Param) error {
		received <- params
		return nil
	}, "pv:name", 42))
	select {
	case params := <-received:
		assert.Equal(t, []Param{"pv:name", 42}, params)
	case <-time.After(testWaitTimeout):
		t.Fatal("Callback should have been executed")
	}
}

func TestDispatcher_Stop(t *testing.T) {
	var (
		counter atomic.Int32
		d       = testDispatcher(t, WithCategories(testCategories...))
	)
	for i := 0; i < 10; i++ {
		for _, cat := range testCategories {
			require.NoError(t, d.Dispatch(cat, func(...Param) error {
				time.Sleep(time.Millisecond)
				counter.Add(1)
				return nil
			}))
		}
	}
	require.NoError(t, d.Stop())
	assert.Equal(t, int32(30), counter.Load(), "Stop should drain queued callbacks")
	assert.Equal(t, StateStopped, d.State())
	assert.False(t, d.IsAlive())
	for _, cat := range testCategories {
		w, _ := d.Worker(cat)
		assert.False(t, w.IsAlive())
	}

	start := time.Now()
	assert.NoError(t, d.Stop(), "Stopping again should be a no-op")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	err := d.Dispatch(CategoryMonitor, func(...Param) error {
		t.Error("Should not run after Stop")
		return nil
	})
	assert.ErrorIs(t, err, ErrDispatcherStopped)
}

func TestDispatcher_Stop_Timeout(t *testing.T) {
	var (
		started = make(chan struct{})
		release = make(chan struct{})
		d       = testDispatcher(t, WithCategories(testCategories...), WithStopTimeout(50*time.Millisecond))
	)
	defer close(release)
	require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error {
			return nil
		}))
	}
	err := d.Stop()
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Contains(t, err.Error(), "monitor")
	assert.Equal(t, StateStopped, d.State())
	w, _ := d.Worker(CategoryMonitor)
	assert.Equal(t, uint64(3), w.Stats().Dropped)
	assert.NoError(t, d.Stop())
}

func TestDispatcher_ThreeCategories(t *testing.T) {
	const calls = 100
	var (
		d      = testDispatcher(t, WithCategories(testCategories...))
		orders = map[Category]*recorder{}
		wg     sync.WaitGroup
	)
	for _, cat := range testCategories {
		orders[cat] = new(recorder)
	}
	wrapped := map[Category]func(int){
		CategoryMetadata: WrapFunc(d, CategoryMetadata, orders[CategoryMetadata].record),
		CategoryMonitor:  WrapFunc(d, CategoryMonitor, orders[CategoryMonitor].record),
		CategoryGetPut:   WrapFunc(d, CategoryGetPut, orders[CategoryGetPut].record),
	}
	wg.Add(len(wrapped))
	for _, fn := range wrapped {
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				fn(i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, d.Stop())

	expected := make([]int, calls)
	for i := range expected {
		expected[i] = i
	}
	for _, cat := range testCategories {
		assert.Len(t, orders[cat].values(), calls, "Category %s should execute every callback", cat)
		assert.Equal(t, expected, orders[cat].values(), "Category %s should execute in enqueue order", cat)
	}
}

func TestDispatcher_IndependentCategories(t *testing.T) {
	var (
		d               = testDispatcher(t, WithCategories(testCategories...))
		monitorStarted  = make(chan struct{})
		monitorDone     atomic.Bool
		metadataCounter atomic.Int32
		metadataRan     = make(chan bool, 1)
	)
	require.NoError(t, d.Dispatch(CategoryMonitor, func(...Param) error {
		close(monitorStarted)
		time.Sleep(200 * time.Millisecond)
		monitorDone.Store(true)
		return nil
	}))
	<-monitorStarted
	require.NoError(t, d.Dispatch(CategoryMetadata, func(...Param) error {
		metadataCounter.Add(1)
		metadataRan <- monitorDone.Load()
		return nil
	}))
	select {
	case sawMonitorDone := <-metadataRan:
		assert.False(t, sawMonitorDone, "Metadata callback should not wait for the monitor callback")
		assert.Equal(t, int32(1), metadataCounter.Load())
	case <-time.After(150 * time.Millisecond):
		t.Fatal("Metadata callback was blocked by the monitor callback")
	}
}

func TestDispatcher_ErrorHandler(t *testing.T) {
	var (
		testErr = errors.New("callback error")
		errs    = make(chan *CallbackError, 1)
		d       = testDispatcher(t, WithErrorHandler(func(err *CallbackError) {
			errs <- err
		}))
	)
	require.NoError(t, d.Dispatch(CategoryMetadata, testFailingCallback(testErr), "arg"))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, testErr)
		assert.Equal(t, CategoryMetadata, err.Category)
		assert.True(t, strings.Contains(err.Callback, "testFailingCallback"), "Callback identity should name the function: %s", err.Callback)
		assert.Equal(t, uint64(1), err.Seq)
	case <-time.After(testWaitTimeout):
		t.Fatal("Error handler should have been called")
	}
}

func TestDispatcher_ScheduleUtilityTask(t *testing.T) {
	var (
		d   = testDispatcher(t)
		ran = make(chan time.Time, 2)
		cb  = func(...Param) error {
			ran <- time.Now()
			return nil
		}
	)
	start := time.Now()
	require.NoError(t, d.ScheduleUtilityTask(50*time.Millisecond, cb))
	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(testWaitTimeout):
		t.Fatal("Utility task should have run")
	}
	require.NoError(t, d.ScheduleUtilityTask(0, cb))
	select {
	case <-ran:
	case <-time.After(testWaitTimeout):
		t.Fatal("Utility task without delay should have run")
	}
	assert.NoError(t, d.ScheduleUtilityTask(time.Second, nil))

	require.NoError(t, d.Stop())
	assert.ErrorIs(t, d.ScheduleUtilityTask(time.Millisecond, cb), ErrDispatcherStopped)

	noUtility := testDispatcher(t, WithCategories(testCategories...))
	assert.ErrorIs(t, noUtility.ScheduleUtilityTask(0, cb), ErrUnknownCategory)
}

func TestDispatcher_Stop_CancelsUtilityTasks(t *testing.T) {
	var (
		d   = testDispatcher(t)
		ran atomic.Bool
	)
	require.NoError(t, d.ScheduleUtilityTask(30*time.Millisecond, func(...Param) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, d.Stop())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, ran.Load(), "A cancelled utility task should never run")
	w, err := d.Worker(CategoryUtility)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), w.Stats().Rejected, "A cancelled utility task should not be rejected")
}

func TestDispatcher_QueueLens(t *testing.T) {
	var (
		d       = testDispatcher(t, WithCategories(testCategories...))
		started = make(chan struct{})
		release = make(chan struct{})
	)
	require.NoError(t, d.Dispatch(CategoryGetPut, func(...Param) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(CategoryGetPut, func(...Param) error { return nil }))
	}
	lens := d.QueueLens()
	assert.Equal(t, 3, lens[CategoryGetPut])
	assert.Equal(t, 0, lens[CategoryMonitor])
	close(release)
	require.NoError(t, d.Stop())
	stats := d.Stats()
	require.Len(t, stats, len(testCategories))
	assert.Equal(t, CategoryGetPut, stats[2].Category)
	assert.Equal(t, uint64(4), stats[2].Executed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestParseCategories(t *testing.T) {
	cats, err := ParseCategories(" metadata", "monitor ")
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryMetadata, CategoryMonitor}, cats)
	_, err = ParseCategories("monitor", "monitor")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ParseCategories()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

type recorder struct {
	mux  sync.Mutex
	seen []int
}

func (r *recorder) record(val int) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.seen = append(r.seen, val)
}

func (r *recorder) values() []int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]int(nil), r.seen...)
}

func testFailingCallback(err error) Callback {
	return func(...Param) error {
		return err
	}
}

func testDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	d, err := New(append([]Option{WithLogger(slogx.Discard()), WithStopTimeout(testStopTimeout)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Stop()
	})
	return d
}
