package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process tracer and meter providers. A nil *Telemetry
// is usable and behaves like a disabled one.
type Telemetry struct {
	config *Config

	tp *trace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp log.LoggerProvider

	mu      sync.Mutex
	closed  bool
	reasons []string
}

// provider is the lifecycle shared by the SDK tracer and meter providers.
type provider interface {
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type namedProvider struct {
	name string
	provider
}

// New builds the SDK providers for cfg and installs them as the otel
// globals. Exporter setup failures degrade the instance instead of failing
// startup; only an invalid cfg is an error.
func New(ctx context.Context, cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)
	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.setDegraded("tracer provider: %v", err)
	} else {
		t.tp = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.setDegraded("meter provider: %v", err)
	} else if mp != nil {
		t.mp = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

func (t *Telemetry) providers() []namedProvider {
	var ps []namedProvider
	if t.tp != nil {
		ps = append(ps, namedProvider{"trace", t.tp})
	}
	if t.mp != nil {
		ps = append(ps, namedProvider{"meter", t.mp})
	}
	return ps
}

// Tracer returns a tracer from the SDK provider, or from the global one
// when telemetry is off.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// TracerProvider returns the SDK provider, or the global one.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tp == nil {
		return otel.GetTracerProvider()
	}
	return t.tp
}

// Meter returns a meter from the SDK provider, or from the global one.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.mp == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.mp.Meter(name, opts...)
}

// LoggerProvider is the provider handed to the otelzap bridge. Nil until
// SetLoggerProvider is called.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.lp
}

func (t *Telemetry) SetLoggerProvider(lp log.LoggerProvider) {
	if t != nil {
		t.lp = lp
	}
}

// Shutdown stops every provider after a final export. The configured
// shutdown timeout bounds ctx when it carries no deadline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	err := t.each(func(p namedProvider) error {
		if err := p.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s provider shutdown: %w", p.name, err)
		}
		return nil
	})

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return err
}

// ForceFlush exports everything buffered without stopping the providers.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.each(func(p namedProvider) error {
		if err := p.ForceFlush(ctx); err != nil {
			return fmt.Errorf("%s flush: %w", p.name, err)
		}
		return nil
	})
}

// each runs fn on every provider and joins the failures.
func (t *Telemetry) each(fn func(namedProvider) error) error {
	var errs []error
	for _, p := range t.providers() {
		errs = append(errs, fn(p))
	}
	return errors.Join(errs...)
}

// HealthStatus is reported on /health.
type HealthStatus struct {
	Healthy  bool     `json:"healthy"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Health is unhealthy once shut down and degraded when any provider failed
// to start.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return HealthStatus{
		Healthy:  !t.closed,
		Degraded: len(t.reasons) > 0,
		Reasons:  append([]string(nil), t.reasons...),
	}
}

// IsEnabled reports an enabled instance that has not been shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil || !t.config.Enabled {
		return false
	}
	return t.Health().Healthy
}

func (t *Telemetry) setDegraded(format string, args ...any) {
	t.mu.Lock()
	t.reasons = append(t.reasons, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}
