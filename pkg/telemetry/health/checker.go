package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports whether a component is usable. A nil error is healthy.
type CheckFunc func(ctx context.Context) error

// Status values.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// HealthStatus is the aggregated status served by /health and /ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs registered component checks concurrently.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
	version      string
}

// ErrCheckTimeout is reported when a check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(checkTimeout time.Duration, version string) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
		version:      version,
	}
}

// RegisterCheck adds or replaces the check for a component.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// ListChecks returns the registered component names in sorted order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is serving requests.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Version:   c.version,
		Timestamp: time.Now().UTC(),
	}
}

// CheckReadiness runs every check concurrently. The result is ready when all
// pass and degraded otherwise.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.runCheck(ctx, check)
			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status != StatusOK {
			status = StatusDegraded
		}
	}

	return HealthStatus{
		Status:    status,
		Version:   c.version,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() {
		errChan <- check(checkCtx)
	}()

	var err error
	select {
	case err = <-errChan:
	case <-checkCtx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{
		Status:     StatusOK,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

// Pinger is implemented by storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageCheck checks that the storage backend answers.
func StorageCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// QueueCheck fails when a work queue is above its high-water mark, which
// means insight regeneration is falling behind.
func QueueCheck(depth func() int, capacity int) CheckFunc {
	return func(ctx context.Context) error {
		if capacity <= 0 {
			return nil
		}
		if d := depth(); d*10 >= capacity*9 {
			return fmt.Errorf("queue %d/%d full", d, capacity)
		}
		return nil
	}
}
