package ledger

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/metrics"
	"mercator-hq/callisto/pkg/usage"
)

// Regenerator rebuilds a user's insights. *insights.Generator implements it.
type Regenerator interface {
	Generate(ctx context.Context, userID string) ([]*usage.Insight, error)
}

// DispatcherConfig configures regeneration dispatch.
type DispatcherConfig struct {
	// Async queues regenerations on worker goroutines.
	Async bool

	// Workers is the number of per-user-ordered queues. Default: 4.
	Workers int

	// QueueSize is the capacity of each queue. Default: 256.
	QueueSize int

	// Timeout bounds one regeneration. Default: 30s.
	Timeout time.Duration

	// MaxAttempts is the number of tries per job. Default: 3.
	MaxAttempts int
}

type job struct {
	userID    string
	requestID string
}

// Dispatcher triggers insight regeneration after recorded events.
type Dispatcher struct {
	regen   Regenerator
	config  DispatcherConfig
	queues  []chan job
	depth   atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup
	stop    sync.Once
	metrics *metrics.Collector
	logger  *slog.Logger

	// mu orders enqueues against Stop: jobs are sent under the read lock,
	// and stopped flips under the write lock before the workers drain.
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher and, in async mode, starts its workers.
func NewDispatcher(regen Regenerator, config DispatcherConfig, collector *metrics.Collector, logger *slog.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		regen:   regen,
		config:  config,
		done:    make(chan struct{}),
		metrics: collector,
		logger:  logger.With("component", "ledger.dispatcher"),
	}

	if config.Async {
		d.queues = make([]chan job, config.Workers)
		for i := range d.queues {
			d.queues[i] = make(chan job, config.QueueSize)
			d.wg.Add(1)
			go d.worker(d.queues[i])
		}
		d.logger.Info("insight regeneration workers started",
			"workers", config.Workers,
			"queue_size", config.QueueSize,
		)
	}
	return d
}

// Dispatch schedules regeneration for userID. In sync mode, or when the
// user's queue is full or the dispatcher is stopped, it runs inline.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string) {
	if len(d.queues) == 0 {
		d.run(ctx, job{userID: userID, requestID: logging.GetRequestID(ctx)}, 1)
		return
	}

	j := job{userID: userID, requestID: logging.GetRequestID(ctx)}
	if d.enqueue(ctx, j) {
		return
	}
	d.run(ctx, j, 1)
}

// enqueue queues j unless the dispatcher is stopped or the user's queue is
// full.
func (d *Dispatcher) enqueue(ctx context.Context, j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.queues[d.shard(j.userID)] <- j:
		d.metrics.SetRegenerationQueueDepth(int(d.depth.Add(1)))
		return true
	default:
		d.logger.WarnContext(ctx, "regeneration queue full, running inline", "user_id", j.userID)
		return false
	}
}

// Depth returns the number of queued regenerations.
func (d *Dispatcher) Depth() int {
	return int(d.depth.Load())
}

// Capacity returns the total queue capacity, 0 in sync mode.
func (d *Dispatcher) Capacity() int {
	return len(d.queues) * d.config.QueueSize
}

// Stop drains queued jobs and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.stop.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
		d.logger.Info("insight regeneration workers stopped")
	})
}

func (d *Dispatcher) shard(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(queue chan job) {
	defer d.wg.Done()
	for {
		select {
		case j := <-queue:
			d.metrics.SetRegenerationQueueDepth(int(d.depth.Add(-1)))
			d.runWithRetry(j)
		case <-d.done:
			for {
				select {
				case j := <-queue:
					d.metrics.SetRegenerationQueueDepth(int(d.depth.Add(-1)))
					d.runWithRetry(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) runWithRetry(j job) {
	ctx := context.Background()
	if j.requestID != "" {
		ctx = logging.WithRequestID(ctx, j.requestID)
	}
	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if d.run(ctx, j, attempt) {
			return
		}
		if attempt < d.config.MaxAttempts {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
	}
}

// run executes one regeneration and reports whether it succeeded.
func (d *Dispatcher) run(ctx context.Context, j job, attempt int) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.Timeout)
	defer cancel()

	created, err := d.regen.Generate(ctx, j.userID)
	if err != nil {
		d.logger.ErrorContext(ctx, "insight regeneration failed",
			"user_id", j.userID,
			"attempt", attempt,
			"error", err,
		)
		return false
	}
	if len(created) > 0 {
		d.logger.DebugContext(ctx, "insights regenerated", "user_id", j.userID, "created", len(created))
	}
	return true
}
