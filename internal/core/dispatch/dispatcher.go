// Package dispatch turns decoded SNMP notifications into action records.
//
// For each variable of a notification from a known source, every rule bound
// to the variable's OID is evaluated in declaration order against the parsed
// value. A satisfied rule yields a rendered description and a positional
// parameter list, which are enqueued for delivery.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/core/metrics"
	"github.com/solatis/trapmapper/internal/rules"
	"github.com/solatis/trapmapper/internal/types"
)

// Drop reasons reported on the dropped-traps metric.
const (
	dropUnknownCommunity = "unknown_community"
	dropStopped          = "stopped"
)

// Queue receives records from the dispatcher. delivery.Queue implements it.
type Queue interface {
	Enqueue(rec types.DispatchRecord) error
	RequestFlush()
	Stop(ctx context.Context) error
}

// Stats holds the dispatcher's running totals.
type Stats struct {
	Received   int64 `json:"received"`
	Dispatched int64 `json:"dispatched"`
	Dropped    int64 `json:"dropped"`
	EvalErrors int64 `json:"eval_errors"`
}

// Dispatcher is safe for concurrent OnNotification calls.
type Dispatcher struct {
	rules       *rules.Configuration
	queue       Queue
	template    string
	evalTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger

	running    atomic.Bool
	received   atomic.Int64
	dispatched atomic.Int64
	dropped    atomic.Int64
	evalErrors atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCommandTemplate overrides rules.DefaultCommandTemplate.
func WithCommandTemplate(tmpl string) Option {
	return func(d *Dispatcher) { d.template = tmpl }
}

// WithEvalTimeout bounds how long the dispatcher waits for each condition.
// A timed-out evaluation keeps running until it returns. Zero disables the bound.
func WithEvalTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.evalTimeout = timeout }
}

// WithClock replaces time.Now for the {Timestamp} token.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher over an immutable rule configuration. It does not
// accept notifications until Start is called.
func New(cfg *rules.Configuration, queue Queue, opts ...Option) (*Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rule configuration cannot be nil")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}

	d := &Dispatcher{
		rules:    cfg,
		queue:    queue,
		template: rules.DefaultCommandTemplate,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.template == "" {
		d.template = rules.DefaultCommandTemplate
	}
	d.logger = logging.OrDefault(d.logger).With(logging.Component("dispatch"))
	return d, nil
}

// Start begins accepting notifications.
func (d *Dispatcher) Start() {
	d.running.Store(true)

	mappings := 0
	for _, src := range d.rules.Sources {
		mappings += len(src.Mappings)
	}
	d.logger.Info("dispatcher started",
		slog.Int("sources", len(d.rules.Sources)),
		slog.Int("mappings", mappings))
}

// Stop refuses further notifications, then stops the queue. The in-flight
// flush completes; undelivered records are discarded.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if !d.running.Swap(false) {
		return nil
	}
	err := d.queue.Stop(ctx)
	s := d.Stats()
	d.logger.Info("dispatcher stopped",
		slog.Int64("received", s.Received),
		slog.Int64("dispatched", s.Dispatched),
		slog.Int64("dropped", s.Dropped))
	return err
}

// Running reports whether notifications are accepted.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// Stats returns a snapshot of the running totals.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:   d.received.Load(),
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		EvalErrors: d.evalErrors.Load(),
	}
}

// OnNotification evaluates n against the rules of its source and enqueues a
// record per satisfied rule. It returns the number of records enqueued.
// An unknown community yields types.ErrUnknownSource; evaluation failures
// only skip the affected rule.
func (d *Dispatcher) OnNotification(ctx context.Context, n types.Notification) (int, error) {
	if !d.running.Load() {
		metrics.TrapsDropped.WithLabelValues(dropStopped).Inc()
		d.logger.Debug("notification dropped, dispatcher stopped", logging.Community(n.Community))
		return 0, types.ErrStopped
	}

	d.received.Add(1)
	metrics.TrapsReceived.Inc()

	src, ok := d.rules.Source(n.Community)
	if !ok {
		d.dropped.Add(1)
		metrics.TrapsDropped.WithLabelValues(dropUnknownCommunity).Inc()
		d.logger.Warn("notification from unknown community dropped",
			logging.Community(n.Community),
			logging.Source(n.Source))
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownSource, n.Community)
	}

	count := 0
	for _, v := range n.Variables {
		for _, rule := range src.RulesFor(v.OID) {
			rec, ok := d.evaluate(ctx, rule, v)
			if !ok {
				continue
			}
			if err := d.queue.Enqueue(rec); err != nil {
				if errors.Is(err, types.ErrStopped) {
					return count, err
				}
				d.logger.Error("failed to enqueue record", logging.Flow(rule.Flow), logging.Error(err))
				continue
			}
			d.dispatched.Add(1)
			metrics.RecordsDispatched.WithLabelValues(rec.EventType.String()).Inc()
			d.queue.RequestFlush()
			count++
		}
	}
	return count, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, rule *rules.Rule, v types.Variable) (types.DispatchRecord, bool) {
	value := rules.ParseValue(v.Raw)

	evalCtx := ctx
	if d.evalTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, d.evalTimeout)
		defer cancel()
	}

	matched, err := rule.Match(evalCtx, value)
	if err != nil {
		d.evalErrors.Add(1)
		metrics.EvalErrors.Inc()
		d.logger.Warn("condition evaluation failed, rule skipped",
			logging.OID(v.OID),
			logging.Flow(rule.Flow),
			slog.String("condition", rule.Condition),
			logging.Error(err))
		return types.DispatchRecord{}, false
	}
	if !matched {
		return types.DispatchRecord{}, false
	}

	now := d.now()
	description := rules.Render(rule.Description,
		rules.Sub(rules.TokenValue, rules.FormatValue(value)),
		rules.Sub(rules.TokenTimestamp, now.Format(rules.TimestampLayout)))
	command := rules.Render(d.template,
		rules.Sub(rules.TokenEventType, strconv.Itoa(int(rule.EventType))),
		rules.Sub(rules.TokenFlow, rule.Flow),
		rules.Sub(rules.TokenDescription, description))

	rec := types.DispatchRecord{
		ID:          types.NewRecordID(),
		EventType:   rule.EventType,
		Flow:        rule.Flow,
		Description: description,
		Value:       value,
		Timestamp:   now,
		Parameters:  rules.SplitParameters(command),
	}
	d.logger.Debug("rule matched",
		logging.RecordID(string(rec.ID)),
		logging.OID(v.OID),
		logging.Flow(rule.Flow),
		logging.EventType(rule.EventType.String()))
	return rec, true
}
