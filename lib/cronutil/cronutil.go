// Package cronutil runs background jobs on cron schedules, with the
// scheduler's own chatter routed through slog.
package cronutil

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler returns a started scheduler. Jobs added to it run until
// Stop is called.
func NewScheduler() Scheduler {
	c := cron.New(cron.WithLogger(slogAdapter{}))
	c.Start()
	return Scheduler{cron: c}
}

// Add schedules a job. The spec uses the standard five field cron
// syntax, or descriptors like "@hourly".
func (s Scheduler) Add(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	return err
}

// Stop ends scheduling. The returned context is done once every
// running job has finished.
func (s Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"err", err}, keysAndValues...)
	slog.Error("cron: "+msg, args...)
}
