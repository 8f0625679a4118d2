package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentrapay/riskengine/internal/circuitbreaker"
	"github.com/sentrapay/riskengine/internal/fraud"
	"github.com/sentrapay/riskengine/internal/idgen"
	"github.com/sentrapay/riskengine/internal/metrics"
	"github.com/sentrapay/riskengine/internal/retry"
)

// Dispatcher writes assessments to a Sink asynchronously. Submissions
// never block the evaluation path: records go through a bounded queue, a
// single worker writes them with retries, and a circuit breaker sheds
// writes while the sink is down. Dropped writes are logged and counted,
// nothing more — the decision was already returned.
type Dispatcher struct {
	sink        Sink
	queue       chan *Record
	breaker     *circuitbreaker.Breaker
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Options tunes the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewDispatcher creates a dispatcher over sink and starts its worker.
func NewDispatcher(sink Sink, logger *slog.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 250 * time.Millisecond
	}

	d := &Dispatcher{
		sink:        sink,
		queue:       make(chan *Record, opts.QueueSize),
		breaker:     circuitbreaker.New("audit_sink", 5, 30*time.Second),
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Submit enqueues an assessment for persistence. It never blocks and it
// never panics: when the queue is full, or the dispatcher is already
// closed, the record is dropped and counted.
func (d *Dispatcher) Submit(tx fraud.Transaction, a *fraud.Assessment) {
	rec := &Record{
		ID:          idgen.WithPrefix("asmt_"),
		Transaction: tx,
		Assessment:  a,
		CreatedAt:   time.Now().UTC(),
	}

	// The read lock is held across the send so Close cannot close the
	// queue between the flag check and the send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("audit dispatcher closed, dropping assessment",
			"user_id", tx.UserID, "action", a.Action)
		return
	}

	select {
	case d.queue <- rec:
		metrics.AuditQueueDepth.Set(float64(len(d.queue)))
	default:
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("audit queue full, dropping assessment",
			"user_id", tx.UserID, "action", a.Action)
	}
}

// Close drains the queue and stops the worker. Records still queued when
// ctx expires are dropped, and later Submits are dropped rather than
// panicking on the closed queue.
func (d *Dispatcher) Close(ctx context.Context) {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("audit dispatcher shutdown timed out", "pending", len(d.queue))
	}
}

// Healthy reports whether the sink circuit is closed.
func (d *Dispatcher) Healthy() bool {
	return d.breaker.State() == circuitbreaker.StateClosed
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for rec := range d.queue {
		metrics.AuditQueueDepth.Set(float64(len(d.queue)))
		d.write(rec)
	}
}

func (d *Dispatcher) write(rec *Record) {
	if !d.breaker.Allow() {
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn("audit sink circuit open, dropping assessment", "id", rec.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := retry.Do(ctx, d.maxAttempts, d.baseDelay, func() error {
		return d.sink.Record(ctx, rec)
	})
	if err != nil {
		d.breaker.RecordFailure()
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		d.logger.Error("audit write failed", "id", rec.ID, "error", err)
		return
	}
	d.breaker.RecordSuccess()
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
}
