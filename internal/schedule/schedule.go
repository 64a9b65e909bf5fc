// Package schedule fires a job once a day at a fixed local time.
package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Clock abstracts time so tests can drive the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

type Scheduler struct {
	hour   int
	minute int
	loc    *time.Location
	clock  Clock
	job    func(ctx context.Context)
	logger *slog.Logger
}

func New(hour, minute int, loc *time.Location, job func(ctx context.Context), clock Clock, logger *slog.Logger) (*Scheduler, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("schedule: invalid time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{hour: hour, minute: minute, loc: loc, clock: clock, job: job, logger: logger}, nil
}

// Next returns the first hour:minute in s's location strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return NextRun(now, s.hour, s.minute, s.loc)
}

// NextRun returns the first hour:minute in loc strictly after now. Calendar
// arithmetic keeps the wall-clock time stable across DST changes.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Run blocks until ctx is cancelled, invoking the job at each daily firing.
// The job runs on the calling goroutine so firings never overlap, and it
// keeps running if ctx is cancelled mid-run.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "at", fmt.Sprintf("%02d:%02d", s.hour, s.minute), "timezone", s.loc.String())
	for {
		now := s.clock.Now()
		next := s.Next(now)
		s.logger.Info("next digest run", "at", next.Format(time.RFC3339), "in", next.Sub(now).Round(time.Second))

		if !s.waitUntil(ctx, next) {
			s.logger.Info("scheduler stopped")
			return nil
		}

		s.job(context.WithoutCancel(ctx))
	}
}

// waitUntil sleeps until the clock reaches deadline. It re-arms when a timer
// fires early relative to the clock, e.g. after the wall clock was adjusted.
func (s *Scheduler) waitUntil(ctx context.Context, deadline time.Time) bool {
	for {
		d := deadline.Sub(s.clock.Now())
		if d <= 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(d):
		}
	}
}
