// Package observability holds the logging, clock, metrics and tracing
// seams shared by the lookup, cache and terminology packages.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Logger is the structured logger accepted by every component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a clock reading UTC wall time.
func SystemClock() Clock { return ClockFunc(func() time.Time { return time.Now().UTC() }) }

// MetricsRecorder observes the outcome and latency of an operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// NewSlogLogger adapts a *slog.Logger. A nil logger yields the default slog logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return l
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger discards all records.
func NopLogger() Logger { return noopLogger{} }

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NopMetrics discards all observations.
func NopMetrics() MetricsRecorder { return noopMetrics{} }

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// NopTracer returns a tracer whose spans do nothing.
func NopTracer() Tracer { return noopTracer{} }

// Options bundles the observability seams for components configured with
// functional options.
type Options struct {
	Clock   Clock
	Logger  Logger
	Metrics MetricsRecorder
	Tracer  Tracer
}

// Defaults returns options with the system clock and no-op sinks.
func Defaults() Options {
	return Options{
		Clock:   SystemClock(),
		Logger:  NopLogger(),
		Metrics: NopMetrics(),
		Tracer:  NopTracer(),
	}
}

// Normalize replaces nil members with defaults.
func (o Options) Normalize() Options {
	d := Defaults()
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.Metrics == nil {
		o.Metrics = d.Metrics
	}
	if o.Tracer == nil {
		o.Tracer = d.Tracer
	}
	return o
}

// Run executes fn inside a span and records its outcome under operation.
func (o Options) Run(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := o.Clock.Now()
	ctx, span := o.Tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	o.Metrics.Observe(ctx, operation, err == nil, o.Clock.Now().Sub(start))
	return err
}
