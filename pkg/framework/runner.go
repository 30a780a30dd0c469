package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun wraps a Runnable with a name.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

type runnerExit struct {
	name string
	err  error
}

// Runner runs multiple Runnables and collect errors.
type Runner struct {
	Context context.Context
	Runners []Runnable
	// StopAll cancels the remaining Runnables once any of them exits.
	StopAll bool

	cancel context.CancelFunc
	exitCh chan runnerExit
	killCh chan struct{}
}

// NewRunner creates a runner with a default background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner with a specified context.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		cancel:  cancel,
		exitCh:  make(chan runnerExit, 1),
		killCh:  make(chan struct{}),
	}
}

// HandleSignals handles CtrlC and SIGTERM from the system.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.Stop()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.killCh)
	}()
	return r
}

// Stop cancels the context of all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Go spawns Runnables with the runner context.
func (r *Runner) Go(runners ...Runnable) *Runner {
	for _, runner := range runners {
		var name string
		if named, ok := runner.(Named); ok {
			name = named.Name()
		} else {
			name = strconv.Itoa(len(r.Runners))
		}
		r.Runners = append(r.Runners, runner)
		glog.V(4).Infof("start Runner[%s]", name)
		go func(runner Runnable, name string) {
			glog.V(4).Infof("Runner[%s] started", name)
			err := runner.Run(r.Context)
			glog.V(4).Infof("Runner[%s] stopped: %v", name, err)
			r.exitCh <- runnerExit{name: name, err: err}
		}(runner, name)
	}
	return r
}

// Wait waits until all Runnables stops and aggregate errors.
// Cancellation is not treated as an error.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for range r.Runners {
		select {
		case <-r.killCh:
			return ErrForcedExit
		case exit := <-r.exitCh:
			if exit.err != nil && !errors.Is(exit.err, context.Canceled) {
				glog.Errorf("Runner[%s] failed: %v", exit.name, exit.err)
				errs.Add(exit.err)
			}
			if r.StopAll {
				r.Stop()
			}
		}
	}
	r.Stop()
	return errs.Aggregate()
}

// RunWithContextCancel runs a func with doesn't accept a context.
// onCancel is called only when the context is canceled, and it must make
// fn return.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser is a convenient wrapper for RunWithContextCancel and
// ensures closer.Close is either called on cancel or exit of fn.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var closed bool
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
