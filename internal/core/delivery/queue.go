package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/core/metrics"
	"github.com/solatis/trapmapper/internal/core/sink"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/solatis/trapmapper/internal/types"
)

// Stats is a snapshot of queue activity.
type Stats struct {
	Pending    int
	Delivered  int64
	Failed     int64
	Discarded  int64
	Runs       int64
	LastResult any
	LastError  error
}

// Queue is a multi-producer FIFO of action records drained by a single
// Operation into a sink. Delivery is at-most-once: a record is removed
// before its sink call and never retried.
type Queue struct {
	sink   sink.Sink
	op     *Operation
	logger *slog.Logger

	mu      sync.Mutex
	items   []types.DispatchRecord
	stopped bool
	stats   Stats
}

// Option configures a Queue.
type Option func(*queueOptions)

type queueOptions struct {
	minDelay time.Duration
	logger   *slog.Logger
}

// WithMinDelay sets the minimum delay between the starts of two flushes.
func WithMinDelay(d time.Duration) Option {
	return func(o *queueOptions) { o.minDelay = d }
}

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *queueOptions) { o.logger = l }
}

// NewQueue creates a queue delivering into s.
func NewQueue(s sink.Sink, opts ...Option) *Queue {
	var o queueOptions
	for _, opt := range opts {
		opt(&o)
	}

	q := &Queue{
		sink:   s,
		logger: logging.OrDefault(o.logger).With(logging.Component("delivery")),
	}
	q.op = NewOperation(q.flush, o.minDelay)
	return q
}

// Enqueue appends a record. It never blocks on delivery.
func (q *Queue) Enqueue(rec types.DispatchRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return types.ErrStopped
	}
	q.items = append(q.items, rec)
	metrics.QueueDepth.Set(float64(len(q.items)))
	return nil
}

// RequestFlush asks for the queue to be drained and returns immediately.
func (q *Queue) RequestFlush() {
	q.op.Request()
}

// Len returns the number of records waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.Pending = len(q.items)
	s.Runs = q.op.Runs()
	return s
}

// Stop rejects further records, waits for the in-flight flush (which starts
// no further sink calls) and discards whatever is left.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	err := q.op.Close(ctx)

	q.mu.Lock()
	discarded := len(q.items)
	q.items = nil
	q.stats.Discarded += int64(discarded)
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)
	if discarded > 0 {
		metrics.Deliveries.WithLabelValues(metrics.ResultDiscarded).Add(float64(discarded))
		q.logger.Warn("discarded queued records on stop", slog.Int("count", discarded))
	}
	return err
}

// next pops the head record, or reports false when empty or stopped.
func (q *Queue) next() (types.DispatchRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || len(q.items) == 0 {
		return types.DispatchRecord{}, false
	}
	rec := q.items[0]
	q.items[0] = types.DispatchRecord{}
	q.items = q.items[1:]
	metrics.QueueDepth.Set(float64(len(q.items)))
	return rec, true
}

func (q *Queue) flush(ctx context.Context) {
	for {
		rec, ok := q.next()
		if !ok {
			return
		}
		q.deliver(ctx, rec)
	}
}

func (q *Queue) deliver(ctx context.Context, rec types.DispatchRecord) {
	params := make([]any, len(rec.Parameters))
	for i, raw := range rec.Parameters {
		params[i] = rules.ParseValue(raw)
	}

	start := time.Now()
	result, err := q.sink.Execute(ctx, params)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	q.mu.Lock()
	q.stats.LastResult = result
	q.stats.LastError = err
	if err != nil {
		q.stats.Failed++
	} else {
		q.stats.Delivered++
	}
	q.mu.Unlock()

	if err != nil {
		metrics.Deliveries.WithLabelValues(metrics.ResultFailure).Inc()
		level := slog.LevelError
		if errors.Is(err, context.Canceled) {
			level = slog.LevelWarn
		}
		q.logger.Log(ctx, level, "sink call failed, record dropped",
			logging.RecordID(string(rec.ID)),
			logging.Flow(rec.Flow),
			recordAge(rec.ID),
			logging.Error(err))
		return
	}

	metrics.Deliveries.WithLabelValues(metrics.ResultSuccess).Inc()
	q.logger.Debug("record delivered",
		logging.RecordID(string(rec.ID)),
		logging.Flow(rec.Flow),
		slog.Any("result", result),
		logging.Duration(time.Since(start)),
		recordAge(rec.ID))
}

// recordAge reports how long a record waited between dispatch and delivery.
func recordAge(id types.RecordID) slog.Attr {
	created := types.RecordIDTime(id)
	if created.IsZero() {
		return slog.Attr{}
	}
	return slog.Duration("record_age", time.Since(created))
}
