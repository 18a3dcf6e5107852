package task_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-brain/brainerr"
	"github.com/joeycumines/go-brain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context) (any, error) { return nil, nil }

func TestBuilder_oneShot(t *testing.T) {
	d, err := task.NewTask("t", noop, false, true).Build()
	require.NoError(t, err)
	assert.Equal(t, "t", d.Name)
	assert.False(t, d.IsRoutine())
	assert.True(t, d.RunOnStart)
	assert.False(t, d.Process)
}

func TestBuilder_routineRequiresPositiveRefreshRate(t *testing.T) {
	_, err := task.NewTask("t", noop, false, true).RefreshRate(0).Build()
	assert.Error(t, err)
}

func TestBuilder_routine(t *testing.T) {
	d, err := task.NewTask("t", noop, false, true).RefreshRate(100 * time.Millisecond).Build()
	require.NoError(t, err)
	assert.True(t, d.IsRoutine())
}

func TestBuilder_setupThenLoopRequiresRefreshRateAndProcess(t *testing.T) {
	setup := func(ctx context.Context) (any, error) { return "state", nil }
	loop := func(ctx context.Context, state any) (any, error) { return state, nil }

	_, err := task.NewTask("t", nil, true, true).SetupThenLoop(setup, loop).Build()
	assert.Error(t, err, "define_loop_later without refresh_rate must fail")

	_, err = task.NewTask("t", nil, false, true).SetupThenLoop(setup, loop).RefreshRate(time.Second).Build()
	assert.Error(t, err, "define_loop_later requires a child process")

	d, err := task.NewTask("t", nil, true, true).SetupThenLoop(setup, loop).RefreshRate(time.Second).Build()
	require.NoError(t, err)
	assert.True(t, d.DefineLoopLater)
}

func TestBuilder_missingMethod(t *testing.T) {
	_, err := task.NewTask("t", nil, false, true).Build()
	assert.Error(t, err)
}

func TestBuilder_missingName(t *testing.T) {
	_, err := task.NewTask("", noop, false, true).Build()
	assert.Error(t, err)
}

func TestBuilder_invariantViolationIsConfigError(t *testing.T) {
	_, err := task.NewTask("t", noop, false, true).RefreshRate(0).Build()
	require.Error(t, err)

	var cfgErr *brainerr.ConfigError
	assert.True(t, errors.As(err, &cfgErr), "invariant violations must be reportable as brainerr.ConfigError")
	assert.Equal(t, "t", cfgErr.Task)
}
