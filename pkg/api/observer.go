package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the flow controller and the
// save-resolution engine for logging and metrics.
//
// Implementations should be fast and non-blocking; they run inline with
// request handling.
type Observer interface {
	// OnStepRendered is called when a step form is returned for display.
	OnStepRendered(ctx context.Context, route string, session Session, stepIndex int)

	// OnStepRedirected is called when a redirect step is consumed.
	OnStepRedirected(ctx context.Context, route string, session Session, stepIndex int, target string)

	// OnStepSubmitted is called after a submission was processed, for both
	// successes and failures (err != nil).
	OnStepSubmitted(ctx context.Context, route string, session Session, stepIndex int, err error, duration time.Duration)

	// OnFlowCompleted is called when the last step of a flow was submitted.
	OnFlowCompleted(ctx context.Context, route string, session Session)

	// OnResolvePass is called after each executed write plan.
	// pass is 1-based; targets lists the written tables plus "user" when
	// the user target was part of the plan.
	OnResolvePass(ctx context.Context, pass int, targets []string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnStepRendered(ctx context.Context, route string, s Session, idx int) {}
func (NoopObserver) OnStepRedirected(ctx context.Context, route string, s Session, idx int, target string) {
}
func (NoopObserver) OnStepSubmitted(ctx context.Context, route string, s Session, idx int, err error, d time.Duration) {
}
func (NoopObserver) OnFlowCompleted(ctx context.Context, route string, s Session)      {}
func (NoopObserver) OnResolvePass(ctx context.Context, pass int, targets []string) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnStepRendered(ctx context.Context, route string, s Session, idx int) {
	for _, o := range c.observers {
		o.OnStepRendered(ctx, route, s, idx)
	}
}

func (c *CompositeObserver) OnStepRedirected(ctx context.Context, route string, s Session, idx int, target string) {
	for _, o := range c.observers {
		o.OnStepRedirected(ctx, route, s, idx, target)
	}
}

func (c *CompositeObserver) OnStepSubmitted(ctx context.Context, route string, s Session, idx int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepSubmitted(ctx, route, s, idx, err, d)
	}
}

func (c *CompositeObserver) OnFlowCompleted(ctx context.Context, route string, s Session) {
	for _, o := range c.observers {
		o.OnFlowCompleted(ctx, route, s)
	}
}

func (c *CompositeObserver) OnResolvePass(ctx context.Context, pass int, targets []string) {
	for _, o := range c.observers {
		o.OnResolvePass(ctx, pass, targets)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs flow lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnStepRendered(ctx context.Context, route string, s Session, idx int) {
	o.Logger.DebugContext(ctx, "step_rendered",
		slog.String("route", route),
		slog.String("session", s.ID),
		slog.Int("step_index", idx),
	)
}

func (o *LoggingObserver) OnStepRedirected(ctx context.Context, route string, s Session, idx int, target string) {
	o.Logger.InfoContext(ctx, "step_redirected",
		slog.String("route", route),
		slog.String("session", s.ID),
		slog.Int("step_index", idx),
		slog.String("target", target),
	)
}

func (o *LoggingObserver) OnStepSubmitted(ctx context.Context, route string, s Session, idx int, err error, d time.Duration) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		if IsValidationError(err) {
			level = slog.LevelWarn
		}
	}
	o.Logger.Log(ctx, level, "step_submitted",
		slog.String("route", route),
		slog.String("session", s.ID),
		slog.Int("step_index", idx),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnFlowCompleted(ctx context.Context, route string, s Session) {
	o.Logger.InfoContext(ctx, "flow_completed",
		slog.String("route", route),
		slog.String("session", s.ID),
	)
}

func (o *LoggingObserver) OnResolvePass(ctx context.Context, pass int, targets []string) {
	o.Logger.DebugContext(ctx, "resolve_pass",
		slog.Int("pass", pass),
		slog.Any("targets", targets),
	)
}

// BasicMetrics collects simple counters and aggregate submission durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	stepsRendered      atomic.Int64
	stepsRedirected    atomic.Int64
	submissionsOK      atomic.Int64
	submissionsFailed  atomic.Int64
	flowsCompleted     atomic.Int64
	resolvePasses      atomic.Int64
	totalSubmitLatency atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	StepsRendered     int64
	StepsRedirected   int64
	SubmissionsOK     int64
	SubmissionsFailed int64
	FlowsCompleted    int64
	ResolvePasses     int64

	AvgSubmitDuration time.Duration
}

func (m *BasicMetrics) OnStepRendered(ctx context.Context, route string, s Session, idx int) {
	m.stepsRendered.Add(1)
}

func (m *BasicMetrics) OnStepRedirected(ctx context.Context, route string, s Session, idx int, target string) {
	m.stepsRedirected.Add(1)
}

func (m *BasicMetrics) OnStepSubmitted(ctx context.Context, route string, s Session, idx int, err error, d time.Duration) {
	if err != nil {
		m.submissionsFailed.Add(1)
		return
	}
	// Only successful submissions count towards the average.
	m.submissionsOK.Add(1)
	m.totalSubmitLatency.Add(d.Nanoseconds())
}

func (m *BasicMetrics) OnFlowCompleted(ctx context.Context, route string, s Session) {
	m.flowsCompleted.Add(1)
}

func (m *BasicMetrics) OnResolvePass(ctx context.Context, pass int, targets []string) {
	m.resolvePasses.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	ok := m.submissionsOK.Load()
	totalNs := m.totalSubmitLatency.Load()

	var avg time.Duration
	if ok > 0 {
		avg = time.Duration(totalNs / ok)
	}

	return BasicMetricsSnapshot{
		StepsRendered:     m.stepsRendered.Load(),
		StepsRedirected:   m.stepsRedirected.Load(),
		SubmissionsOK:     ok,
		SubmissionsFailed: m.submissionsFailed.Load(),
		FlowsCompleted:    m.flowsCompleted.Load(),
		ResolvePasses:     m.resolvePasses.Load(),
		AvgSubmitDuration: avg,
	}
}
