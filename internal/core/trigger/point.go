// Package trigger fires an HTTP action when a monitored measurement takes a
// configured value.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/solatis/trapmapper/internal/core/delivery"
	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/core/metrics"
	"github.com/solatis/trapmapper/internal/core/sink"
	"github.com/solatis/trapmapper/internal/types"
)

// Config describes the monitored point and the action to invoke.
type Config struct {
	Tag              string
	Value            float64
	FromInitialValue bool
	Action           string
	UserName         string
	Password         string
	Timeout          time.Duration
}

// PointTrigger watches one point tag. Action executions never overlap; a
// match arriving while the action runs is ignored.
type PointTrigger struct {
	cfg    Config
	action sink.Sink
	op     *delivery.Operation
	logger *slog.Logger

	mu              sync.Mutex
	initialReceived bool
}

// Option configures a PointTrigger.
type Option func(*PointTrigger)

// WithAction replaces the HTTP action built from Config.
func WithAction(s sink.Sink) Option {
	return func(p *PointTrigger) { p.action = s }
}

// WithLogger sets the trigger logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *PointTrigger) { p.logger = l }
}

// New creates a trigger for cfg.
func New(cfg Config, opts ...Option) (*PointTrigger, error) {
	if strings.TrimSpace(cfg.Tag) == "" {
		return nil, fmt.Errorf("trigger point tag is required")
	}

	p := &PointTrigger{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger).With(logging.Component("trigger"), logging.Tag(cfg.Tag))

	if p.action == nil {
		if strings.TrimSpace(cfg.Action) == "" {
			return nil, fmt.Errorf("no trigger action specified")
		}
		action, err := sink.NewHTTPSink(sink.HTTPConfig{
			URL:      cfg.Action,
			UserName: cfg.UserName,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		}, sink.WithHTTPLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.action = action
	}

	p.op = delivery.NewOperation(p.run, 0)
	return p, nil
}

// OnMeasurement inspects m and reports whether it started the action.
// Measurements for other tags are ignored. The first matching-tag
// measurement only fires when FromInitialValue is set.
func (p *PointTrigger) OnMeasurement(m types.Measurement) bool {
	if m.Tag != p.cfg.Tag {
		return false
	}

	p.mu.Lock()
	armed := p.initialReceived || p.cfg.FromInitialValue
	p.initialReceived = true
	p.mu.Unlock()

	if m.Value != p.cfg.Value || !armed {
		return false
	}
	return p.op.TryRequest()
}

func (p *PointTrigger) run(ctx context.Context) {
	result, err := p.action.Execute(ctx, nil)
	if err != nil {
		metrics.TriggerFires.WithLabelValues(metrics.ResultFailure).Inc()
		p.logger.Error("failed to process trigger action for detected event", logging.Error(err))
		return
	}
	metrics.TriggerFires.WithLabelValues(metrics.ResultSuccess).Inc()
	p.logger.Info("executed trigger action for detected event",
		slog.Float64("value", p.cfg.Value),
		slog.Any("result", result))
}

// Idle reports whether no action is executing.
func (p *PointTrigger) Idle() bool {
	return p.op.Idle()
}

// Close waits for a running action and refuses further fires.
func (p *PointTrigger) Close(ctx context.Context) error {
	return p.op.Close(ctx)
}

// Status describes the trigger configuration. The password is reported
// only as defined or undefined.
func (p *PointTrigger) Status() string {
	password := "Undefined"
	if sink.IsDefined(p.cfg.Password) {
		password = "Defined"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%26s: %s\n", "Trigger Point Tag", p.cfg.Tag)
	fmt.Fprintf(&b, "%26s: %s\n", "Trigger Action", p.cfg.Action)
	fmt.Fprintf(&b, "%26s: %s\n", "Trigger Action User Name", sink.ResolveCredential(p.cfg.UserName))
	fmt.Fprintf(&b, "%26s: %s\n", "Trigger Action Password", password)
	fmt.Fprintf(&b, "%26s: %.2f\n", "Trigger Value", p.cfg.Value)
	return b.String()
}

// ShortStatus is a one-line summary.
func (p *PointTrigger) ShortStatus() string {
	return fmt.Sprintf("Listening for trigger value %.2f from point tag %q", p.cfg.Value, p.cfg.Tag)
}
