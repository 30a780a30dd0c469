package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())

	err1, err2 := errors.New("err1"), errors.New("err2")
	err := errs.Add(err1).Aggregate()
	require.EqualError(t, err, "err1")
	err = errs.Add(nil, err2).Aggregate()
	require.EqualError(t, err, "Multiple errors:\nerr1\nerr2")
	require.True(t, errors.Is(err, err2))
}

func TestRunnerWait(t *testing.T) {
	errFailed := errors.New("failed")
	r := NewRunner()
	r.Go(
		NamedRun("ok", RunFunc(func(context.Context) error { return nil })),
		NamedRun("failed", RunFunc(func(context.Context) error { return errFailed })),
	)
	err := r.Wait()
	require.True(t, errors.Is(err, errFailed))
}

func TestRunnerStopAll(t *testing.T) {
	r := NewRunner()
	r.StopAll = true
	r.Go(
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		RunFunc(func(context.Context) error { return nil }),
	)
	done := make(chan error, 1)
	go func() { done <- r.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

type testCloser struct {
	closed int
	ch     chan struct{}
}

func (c *testCloser) Close() error {
	if c.closed == 0 && c.ch != nil {
		close(c.ch)
	}
	c.closed++
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &testCloser{}
	require.NoError(t, RunWithContextCloser(context.Background(), c, func() error { return nil }))
	require.Equal(t, 1, c.closed)

	c = &testCloser{ch: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.ch
		return errors.New("closed")
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, c.closed)
}
