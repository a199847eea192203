package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (f *fakeJob) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeJob) Stop() error {
	f.stopped = true
	return f.stopErr
}

func TestRunStartsAllJobsWaitsThenStopsAll(t *testing.T) {
	j1 := &fakeJob{}
	j2 := &fakeJob{}
	r := New(j1, j2)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, j1.started)
	require.True(t, j2.started)

	r.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	require.True(t, j1.stopped)
	require.True(t, j2.stopped)
}

func TestRunStopsAlreadyStartedJobsIfOneFailsToStart(t *testing.T) {
	j1 := &fakeJob{}
	j2 := &fakeJob{startErr: errors.New("boom")}
	r := New(j1, j2)

	err := r.Run(context.Background())
	require.Error(t, err)
	require.True(t, j1.started)
	require.True(t, j1.stopped)
	require.False(t, j2.started)
}

func TestRunJoinsStopErrors(t *testing.T) {
	j1 := &fakeJob{stopErr: errors.New("stop failure one")}
	j2 := &fakeJob{stopErr: errors.New("stop failure two")}
	r := New(j1, j2)

	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	r.Shutdown()

	err := <-done
	require.Error(t, err)
	require.Contains(t, err.Error(), "stop failure one")
	require.Contains(t, err.Error(), "stop failure two")
}
