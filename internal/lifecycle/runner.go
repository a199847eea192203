// Package lifecycle drives process start/stop: construct once, Start
// every job, wait for a termination signal, then Stop every job in
// order and exit.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Job is anything with an independent start/stop lifecycle: the
// health monitor and the ingress HTTP server both implement it.
type Job interface {
	Start(ctx context.Context) error
	Stop() error
}

// Runner starts and stops a fixed set of Jobs around a signal wait.
type Runner struct {
	jobs     []Job
	stopChan chan os.Signal
}

// New builds a Runner over the given jobs, in start order.
func New(jobs ...Job) *Runner {
	return &Runner{
		jobs:     jobs,
		stopChan: make(chan os.Signal, 1),
	}
}

// start launches every job. If any job fails to start, the already-
// started jobs are stopped before the error is returned.
func (r *Runner) start(ctx context.Context) error {
	slog.Info("orchestrator starting")
	for i, j := range r.jobs {
		if err := j.Start(ctx); err != nil {
			for _, started := range r.jobs[:i] {
				_ = started.Stop()
			}
			return err
		}
	}
	return nil
}

// wait blocks until SIGINT, SIGTERM, or SIGHUP is received.
func (r *Runner) wait() {
	signal.Notify(r.stopChan, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	<-r.stopChan
	signal.Stop(r.stopChan)
	slog.Info("shutdown signal received")
}

// stop stops every job, joining any errors encountered.
func (r *Runner) stop() error {
	errs := make([]error, 0, len(r.jobs))
	for _, j := range r.jobs {
		errs = append(errs, j.Stop())
	}
	return errors.Join(errs...)
}

// Run starts every job, blocks until a termination signal arrives,
// then stops every job and returns any shutdown errors. Use Shutdown
// to trigger the same stop sequence programmatically (e.g. in tests)
// instead of via a real OS signal.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	r.wait()
	err := r.stop()
	slog.Info("orchestrator stopped")
	return err
}

// Shutdown triggers the same stop path Run's signal wait would,
// without requiring an actual OS signal. Safe to call once.
func (r *Runner) Shutdown() {
	select {
	case r.stopChan <- syscall.SIGTERM:
	default:
	}
}
