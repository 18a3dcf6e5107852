package wrapper_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/task"
	"github.com/joeycumines/go-brain/wrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, b *task.Builder) *task.Descriptor {
	t.Helper()
	d, err := b.Build()
	require.NoError(t, err)
	return d
}

func TestWrapper_oneShotSuccess(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		return 42, nil
	}, false, true))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Correctly, rep.Status)
	assert.Equal(t, 42, rep.Result)
}

func TestWrapper_oneShotFault(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}, false, true))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.ErrorOccurred, rep.Status)
	assert.Error(t, rep.Err)
}

func TestWrapper_oneShotPanicIsRecovered(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		panic("kaboom")
	}, false, true))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.ErrorOccurred, rep.Status)
}

func TestWrapper_oneShotDeadlineExceededYieldsTimeout(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, false, true).Timeout(20*time.Millisecond))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Timeout, rep.Status)
}

func TestWrapper_oneShotOuterCancelYieldsCorrectly(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, false, true))

	ctx, cancel := context.WithCancel(context.Background())
	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)

	done := make(chan task.Report, 1)
	go func() { done <- bt.Invoke(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	rep := <-done
	assert.Equal(t, task.Correctly, rep.Status)
}

func TestWrapper_routineStopsOnGlobalTimeout(t *testing.T) {
	var n int64
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		atomic.AddInt64(&n, 1)
		return nil, nil
	}, false, true).RefreshRate(50*time.Millisecond).Timeout(180*time.Millisecond))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Timeout, rep.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&n), int64(2))
}

func TestWrapper_routineIterationFaultDoesNotStopRoutine(t *testing.T) {
	var i int64 = -1
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		n := atomic.AddInt64(&i, 1)
		if n == 0 {
			return nil, fmt.Errorf("fault on first iteration")
		}
		return n, nil
	}, false, true).RefreshRate(30*time.Millisecond).Timeout(150*time.Millisecond))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Timeout, rep.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&i), int64(2))
}

func TestWrapper_setupThenLoopFaultInSetupSkipsLoop(t *testing.T) {
	var loopRan int32
	d := build(t, task.NewTask("t", nil, true, true).SetupThenLoop(
		func(ctx context.Context) (any, error) { return nil, errors.New("setup failed") },
		func(ctx context.Context, state any) (any, error) {
			atomic.StoreInt32(&loopRan, 1)
			return nil, nil
		},
	).RefreshRate(10*time.Millisecond))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.ErrorOccurred, rep.Status)
	assert.Zero(t, atomic.LoadInt32(&loopRan))
}

func TestWrapper_setupThenLoopSharesState(t *testing.T) {
	var observed int32
	d := build(t, task.NewTask("t", nil, true, true).SetupThenLoop(
		func(ctx context.Context) (any, error) { return "ready", nil },
		func(ctx context.Context, state any) (any, error) {
			if state == "ready" {
				atomic.AddInt32(&observed, 1)
			}
			return nil, nil
		},
	).RefreshRate(10*time.Millisecond).Timeout(60*time.Millisecond))

	bt := wrapper.Bind(d, logging.NoOpLogger{}, nil)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Timeout, rep.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&observed), int32(2))
}

type fakeHost struct {
	status        int32
	result        any
	faultErr      error
	transportErr  error
	calls         int32
}

func (h *fakeHost) Invoke(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (int32, any, error, error) {
	atomic.AddInt32(&h.calls, 1)
	return h.status, h.result, h.faultErr, h.transportErr
}

func TestWrapper_dispatchesToChildHostWhenProcess(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		t.Fatal("should not run locally")
		return nil, nil
	}, true, true))

	host := &fakeHost{status: int32(task.Correctly), result: "from-child"}
	bt := wrapper.Bind(d, logging.NoOpLogger{}, host)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.Correctly, rep.Status)
	assert.Equal(t, "from-child", rep.Result)
	assert.EqualValues(t, 1, atomic.LoadInt32(&host.calls))
}

func TestWrapper_childTransportFaultYieldsErrorOccurred(t *testing.T) {
	d := build(t, task.NewTask("t", func(ctx context.Context) (any, error) {
		return nil, nil
	}, true, true))

	host := &fakeHost{transportErr: errors.New("child dead")}
	bt := wrapper.Bind(d, logging.NoOpLogger{}, host)
	rep := bt.Invoke(context.Background())

	assert.Equal(t, task.ErrorOccurred, rep.Status)
	assert.Error(t, rep.Err)
}
