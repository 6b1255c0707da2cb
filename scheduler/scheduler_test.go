package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pgtelemetry/collector/util"
)

var nextRunTests = []struct {
	expression string
	now        time.Time
	expected   time.Time
}{
	{
		"0 * * * * * *",
		time.Date(2013, 1, 1, 0, 5, 30, 0, time.UTC),
		time.Date(2013, 1, 1, 0, 6, 0, 0, time.UTC),
	},
	{
		"0 */10 * * * * *",
		time.Date(2013, 1, 1, 0, 5, 0, 0, time.UTC),
		time.Date(2013, 1, 1, 0, 10, 0, 0, time.UTC),
	},
	{
		"*/15 * * * * * *",
		time.Date(2013, 1, 1, 0, 5, 16, 0, time.UTC),
		time.Date(2013, 1, 1, 0, 5, 30, 0, time.UTC),
	},
}

func TestNextRun(t *testing.T) {
	for _, test := range nextRunTests {
		group, err := NewGroup(test.expression)
		if err != nil {
			t.Fatalf("Error: %v\n", err)
		}

		actualNextRun := group.NextRun(test.now)
		if test.expected != actualNextRun {
			t.Errorf("\n%s next run:\n\texpected %s\n\tactual %s\n\n", test.expression, test.expected, actualNextRun)
		}
	}
}

func TestInvalidSchedule(t *testing.T) {
	_, err := NewGroup("every minute")
	if err == nil {
		t.Errorf("Expected error for invalid schedule")
	}
}

func TestScheduleStopsOnCancel(t *testing.T) {
	group, err := NewGroup("* * * * * * *")
	if err != nil {
		t.Fatalf("Error: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan struct{}, 10)
	done := group.Schedule(ctx, func(ctx context.Context) { runs <- struct{}{} }, util.NewNopLogger(), "test")

	select {
	case <-runs:
	case <-time.After(3 * time.Second):
		t.Fatalf("Expected at least one run within 3 seconds")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Expected the schedule to stop after cancel")
	}
}

// Once done is closed, an in-flight run has finished and no new run starts
func TestScheduleDoneWaitsForRun(t *testing.T) {
	group, err := NewGroup("* * * * * * *")
	if err != nil {
		t.Fatalf("Error: %v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var finished atomic.Int32

	done := group.Schedule(ctx, func(ctx context.Context) {
		started <- struct{}{}
		<-release
		finished.Add(1)
	}, util.NewNopLogger(), "test")

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("Expected a run to start within 3 seconds")
	}
	cancel()

	select {
	case <-done:
		t.Fatalf("Expected done to stay open while a run is in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Expected the schedule to stop once the run finished")
	}

	if finished.Load() != 1 {
		t.Errorf("Expected exactly 1 finished run; actual %d", finished.Load())
	}
}
