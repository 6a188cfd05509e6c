package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"vistream/services/scheduler"
)

func TestRunNowExecutesTask(t *testing.T) {
	svc := scheduler.NewService(time.Minute)

	var runs atomic.Int32
	svc.Register(scheduler.Task{
		ID:       "expire-trials",
		Name:     "Expire lapsed trials",
		Interval: time.Hour,
		Run: func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 3, nil
		},
	})

	if err := svc.RunNow("expire-trials"); err != nil {
		t.Fatalf("run now: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var status scheduler.Status
	for time.Now().Before(deadline) {
		status = svc.TaskStatus()[0]
		if status.LastRunAt != nil && !status.Running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.LastRunAt == nil {
		t.Fatal("expected last run timestamp")
	}
	if status.ItemsProcessed != 3 {
		t.Fatalf("expected 3 items processed, got %d", status.ItemsProcessed)
	}
	if status.LastError != "" {
		t.Fatalf("unexpected error: %s", status.LastError)
	}
}

func TestRunNowUnknownTask(t *testing.T) {
	svc := scheduler.NewService(time.Minute)
	if err := svc.RunNow("missing"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestStartRunsDueTasksAndStops(t *testing.T) {
	svc := scheduler.NewService(time.Second)

	var runs atomic.Int32
	svc.Register(scheduler.Task{
		ID:       "sweep",
		Name:     "Sweep rate limit buckets",
		Interval: time.Hour,
		Run: func(ctx context.Context) (int, error) {
			runs.Add(1)
			return 0, nil
		},
	})

	svc.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("task did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(stopCtx)
}
