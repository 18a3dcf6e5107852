package supervisor_test

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-brain/brain"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/supervisor"
	"github.com/joeycumines/go-brain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type oneShotBrain struct {
	brain.Base
}

func (b *oneShotBrain) DeclareTasks() ([]*task.Descriptor, error) {
	d, err := task.NewTask("t", func(ctx context.Context) (any, error) {
		return 42, nil
	}, false, true).Build()
	if err != nil {
		return nil, err
	}
	return []*task.Descriptor{d}, nil
}

func TestSupervisor_runsAutostartTasksAndCollectsReports(t *testing.T) {
	b := &oneShotBrain{}
	require.NoError(t, brain.Init(logging.NoOpLogger{}, b, "", nil))

	sup := supervisor.New()
	sup.Register(b)

	reports, err := sup.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, task.Correctly, reports[0].Status)
	assert.Equal(t, 42, reports[0].Result)
}

type sharedCounterBrain struct {
	brain.Base
	X int
}

func (b *sharedCounterBrain) DeclareTasks() ([]*task.Descriptor, error) {
	d, err := task.NewTask("incr", func(ctx context.Context) (any, error) {
		for i := 0; i < 3; i++ {
			v, _ := b.Shared().Get("X")
			n, _ := v.(int)
			n++
			if err := b.Shared().Set("X", n); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, false, true).Build()
	if err != nil {
		return nil, err
	}
	return []*task.Descriptor{d}, nil
}

func TestSupervisor_taskSharedWritesVisibleAfterRun(t *testing.T) {
	b := &sharedCounterBrain{}
	require.NoError(t, brain.Init(logging.NoOpLogger{}, b, "", nil))

	sup := supervisor.New(supervisor.WithSyncInterval(5 * time.Millisecond))
	sup.Register(b)

	_, err := sup.Run(context.Background())
	require.NoError(t, err)

	v, ok := b.Shared().Get("X")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestSupervisor_getTasksConcatenatesAcrossBrains(t *testing.T) {
	b1 := &oneShotBrain{}
	b2 := &oneShotBrain{}
	require.NoError(t, brain.Init(logging.NoOpLogger{}, b1, "", nil))
	require.NoError(t, brain.Init(logging.NoOpLogger{}, b2, "", nil))

	sup := supervisor.New()
	sup.Register(b1)
	sup.Register(b2)

	assert.Len(t, sup.GetTasks(), 2)
}

type emptyBrain struct {
	brain.Base
}

func (b *emptyBrain) DeclareTasks() ([]*task.Descriptor, error) { return nil, nil }

func TestSupervisor_shutdownReturnsPromptlyWithNoChildren(t *testing.T) {
	b := &emptyBrain{}
	require.NoError(t, brain.Init(logging.NoOpLogger{}, b, "", nil))

	sup := supervisor.New(supervisor.WithShutdownGrace(50 * time.Millisecond))
	sup.Register(b)

	start := time.Now()
	sup.Shutdown(context.Background())
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}
