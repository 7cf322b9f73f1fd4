package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestNextRun(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		day  time.Weekday
		hour int
		loc  *time.Location
		want time.Time
	}{
		{
			name: "later the same week",
			now:  time.Date(2025, 8, 5, 12, 0, 0, 0, time.UTC), // Tuesday
			day:  time.Friday, hour: 9, loc: time.UTC,
			want: time.Date(2025, 8, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "same day before the hour",
			now:  time.Date(2025, 8, 4, 8, 59, 0, 0, time.UTC), // Monday
			day:  time.Monday, hour: 9, loc: time.UTC,
			want: time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at the hour rolls a week",
			now:  time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC),
			day:  time.Monday, hour: 9, loc: time.UTC,
			want: time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday is taken in the scheduler timezone",
			now:  time.Date(2025, 8, 5, 2, 0, 0, 0, time.UTC), // Monday 22:00 in New York
			day:  time.Monday, hour: 23, loc: ny,
			want: time.Date(2025, 8, 4, 23, 0, 0, 0, ny),
		},
	}

	for _, tc := range cases {
		got := nextRun(tc.now, tc.day, tc.hour, tc.loc)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestStartRunsJobAndStops(t *testing.T) {
	t.Parallel()

	s := NewWeeklyScheduler(time.Monday, 9, time.UTC)
	fired := make(chan time.Time, 4)
	ticks := make(chan time.Time)
	s.after = func(time.Duration) <-chan time.Time { return ticks }

	if err := s.Start(context.Background(), func(t time.Time) { fired <- t }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}

	at := time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC)
	ticks <- at
	select {
	case got := <-fired:
		if !got.Equal(at) {
			t.Fatalf("job got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}

func TestNilJobIsNoop(t *testing.T) {
	t.Parallel()

	s := NewWeeklyScheduler(time.Monday, 30, nil)
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if s.hour != 23 || s.loc != time.UTC {
		t.Fatalf("unexpected normalization: hour=%d loc=%v", s.hour, s.loc)
	}
}
