package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/telemetry/logging"
)

func noop(ctx context.Context) error { return nil }

func TestScheduler_Add(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		wantJob   bool
		wantError bool
	}{
		{"daily", "0 3 * * *", true, false},
		{"weekly", "0 2 * * 1", true, false},
		{"empty schedule disables", "", false, false},
		{"invalid", "invalid cron", false, true},
		{"six fields", "0 0 3 * * *", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, nil)
			err := s.Add(context.Background(), "job", tt.schedule, noop)
			if (err != nil) != tt.wantError {
				t.Fatalf("Add() error = %v, wantError %v", err, tt.wantError)
			}
			if got := len(s.Jobs()) == 1; got != tt.wantJob {
				t.Errorf("job registered = %v, want %v", got, tt.wantJob)
			}
		})
	}
}

func TestScheduler_AddDuplicate(t *testing.T) {
	s := New(nil, nil)
	if err := s.Add(context.Background(), "sweep", "0 2 * * 1", noop); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := s.Add(context.Background(), "sweep", "0 3 * * *", noop); err == nil {
		t.Error("expected error for duplicate job name")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(time.UTC, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Add(ctx, "retention", "0 3 * * *", noop); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if s.NextRun("retention") != nil {
		t.Error("NextRun() before Start should be nil")
	}

	s.Start(ctx)
	if !s.IsRunning() {
		t.Fatal("expected scheduler to be running")
	}

	next := s.NextRun("retention")
	if next == nil {
		t.Fatal("NextRun() returned nil for running scheduler")
	}
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("NextRun() = %v, want 03:00", next)
	}
	if s.NextRun("unknown") != nil {
		t.Error("NextRun(unknown) should be nil")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("expected scheduler to be stopped")
	}
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil, nil)

	var calls atomic.Int32
	var job string
	err := s.RunNow(context.Background(), "compliance_sweep", func(ctx context.Context) error {
		calls.Add(1)
		job = logging.GetJob(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("RunNow() failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("job ran %d times, want 1", calls.Load())
	}
	if job != "compliance_sweep" {
		t.Errorf("job context = %q, want compliance_sweep", job)
	}

	boom := errors.New("boom")
	if err := s.RunNow(context.Background(), "x", func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("RunNow() error = %v, want boom", err)
	}
}
