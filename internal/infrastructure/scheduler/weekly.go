package scheduler

import (
	"context"
	"sync"
	"time"

	"PropDashboards/internal/ports"
)

// WeeklyScheduler fires a job once a week at a fixed weekday and hour.
type WeeklyScheduler struct {
	day  time.Weekday
	hour int
	loc  *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*WeeklyScheduler)(nil)

// NewWeeklyScheduler builds a scheduler for day at hour:00 in loc.
func NewWeeklyScheduler(day time.Weekday, hour int, loc *time.Location) *WeeklyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklyScheduler{
		day:   day,
		hour:  min(23, max(0, hour)),
		loc:   loc,
		now:   time.Now,
		after: time.After,
	}
}

// Next returns the first run strictly after now.
func (w *WeeklyScheduler) Next(now time.Time) time.Time {
	return nextRun(now, w.day, w.hour, w.loc)
}

// Start launches the wait loop. A second Start while running is a no-op.
func (w *WeeklyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	w.stop, w.done = stop, done

	go func() {
		defer close(done)
		for {
			wait := w.Next(w.now()).Sub(w.now())
			select {
			case t := <-w.after(wait):
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the wait loop and waits for a running job to return.
func (w *WeeklyScheduler) Stop(ctx context.Context) error {
	w.mu.Lock()
	stop, done := w.stop, w.done
	w.stop, w.done = nil, nil
	w.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextRun(now time.Time, day time.Weekday, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	offset := (int(day) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, offset)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
