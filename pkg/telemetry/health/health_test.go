package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{
			"all healthy",
			map[string]CheckFunc{"storage": StorageCheck(fakePinger{})},
			StatusReady,
		},
		{
			"storage down",
			map[string]CheckFunc{
				"storage":       StorageCheck(fakePinger{err: errors.New("database is locked")}),
				"insight_queue": QueueCheck(func() int { return 0 }, 10),
			},
			StatusDegraded,
		},
		{
			"queue backed up",
			map[string]CheckFunc{"insight_queue": QueueCheck(func() int { return 9 }, 10)},
			StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second, "test")
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}
			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q (checks %v)", status.Status, tt.want, status.Checks)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(20*time.Millisecond, "")
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v, want timeout", result)
	}
}

func TestListChecks(t *testing.T) {
	checker := New(0, "")
	checker.RegisterCheck("storage", StorageCheck(fakePinger{}))
	checker.RegisterCheck("insight_queue", QueueCheck(func() int { return 0 }, 0))

	names := checker.ListChecks()
	if len(names) != 2 || names[0] != "insight_queue" || names[1] != "storage" {
		t.Errorf("ListChecks() = %v", names)
	}
}

func TestHandlers(t *testing.T) {
	checker := New(time.Second, "1.2.3")

	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("liveness status = %d", rec.Code)
	}
	var live HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&live); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if live.Status != StatusOK || live.Version != "1.2.3" {
		t.Errorf("liveness body = %+v", live)
	}

	checker.RegisterCheck("storage", StorageCheck(fakePinger{err: errors.New("closed")}))
	rec = httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}
