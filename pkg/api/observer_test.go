package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

//
// Helpers
//

// testObserver is a simple Observer implementation used to verify fan-out behavior.
type testObserver struct {
	mu sync.Mutex

	rendered   int
	redirected int
	submitted  int
	completed  int
	passes     int

	lastSubmit struct {
		Route    string
		Index    int
		Err      error
		Duration time.Duration
	}
	lastTargets []string
}

func (o *testObserver) OnStepRendered(ctx context.Context, route string, s Session, idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rendered++
}

func (o *testObserver) OnStepRedirected(ctx context.Context, route string, s Session, idx int, target string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.redirected++
}

func (o *testObserver) OnStepSubmitted(ctx context.Context, route string, s Session, idx int, err error, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted++
	o.lastSubmit.Route = route
	o.lastSubmit.Index = idx
	o.lastSubmit.Err = err
	o.lastSubmit.Duration = d
}

func (o *testObserver) OnFlowCompleted(ctx context.Context, route string, s Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

func (o *testObserver) OnResolvePass(ctx context.Context, pass int, targets []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes++
	o.lastTargets = targets
}

func fireAll(obs Observer) {
	ctx := context.Background()
	s := Session{ID: "s"}
	obs.OnStepRendered(ctx, "/r", s, 0)
	obs.OnStepRedirected(ctx, "/r", s, 1, "/elsewhere")
	obs.OnStepSubmitted(ctx, "/r", s, 0, nil, 3*time.Millisecond)
	obs.OnResolvePass(ctx, 1, []string{"leads", "user"})
	obs.OnFlowCompleted(ctx, "/r", s)
}

//
// Tests
//

func TestNoopObserver_DoesNothing(t *testing.T) {
	// Only checks that calls don't panic.
	fireAll(NoopObserver{})
}

func TestCompositeObserver_FanOut(t *testing.T) {
	a := &testObserver{}
	b := &testObserver{}

	obs := NewCompositeObserver(a, nil, b)
	if _, ok := obs.(*CompositeObserver); !ok {
		t.Fatalf("expected *CompositeObserver, got %T", obs)
	}

	fireAll(obs)

	for i, o := range []*testObserver{a, b} {
		if o.rendered != 1 || o.redirected != 1 || o.submitted != 1 || o.completed != 1 || o.passes != 1 {
			t.Fatalf("observer %d: unexpected counts %+v", i, o)
		}
		if o.lastSubmit.Route != "/r" || o.lastSubmit.Duration != 3*time.Millisecond {
			t.Fatalf("observer %d: unexpected submit args %+v", i, o.lastSubmit)
		}
		if len(o.lastTargets) != 2 {
			t.Fatalf("observer %d: unexpected targets %v", i, o.lastTargets)
		}
	}
}

func TestCompositeObserver_Collapses(t *testing.T) {
	if _, ok := NewCompositeObserver().(NoopObserver); !ok {
		t.Fatalf("expected NoopObserver for no observers")
	}
	single := &testObserver{}
	if got := NewCompositeObserver(nil, single); got != Observer(single) {
		t.Fatalf("expected the single observer itself, got %T", got)
	}
}

func TestLoggingObserver_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := NewLoggingObserver(logger)
	ctx := context.Background()
	s := Session{ID: "visitor"}

	obs.OnStepRendered(ctx, "/r", s, 0) // debug: filtered
	obs.OnStepSubmitted(ctx, "/r", s, 0, &ValidationError{Field: "email", Reason: "is required"}, time.Millisecond)
	obs.OnStepSubmitted(ctx, "/r", s, 0, &PersistenceError{Op: "insert", Err: errors.New("boom")}, time.Millisecond)
	obs.OnFlowCompleted(ctx, "/r", s)

	out := buf.String()
	if strings.Contains(out, "step_rendered") {
		t.Fatalf("debug record leaked at info level:\n%s", out)
	}
	for _, want := range []string{
		"level=WARN msg=step_submitted",
		"level=ERROR msg=step_submitted",
		"level=INFO msg=flow_completed",
		"session=visitor",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestBasicMetrics_Snapshot(t *testing.T) {
	m := &BasicMetrics{}
	ctx := context.Background()
	s := Session{ID: "s"}

	m.OnStepRendered(ctx, "/r", s, 0)
	m.OnStepSubmitted(ctx, "/r", s, 0, nil, 2*time.Millisecond)
	m.OnStepSubmitted(ctx, "/r", s, 1, nil, 4*time.Millisecond)
	m.OnStepSubmitted(ctx, "/r", s, 1, errors.New("x"), time.Hour)
	m.OnResolvePass(ctx, 1, nil)
	m.OnResolvePass(ctx, 2, nil)
	m.OnFlowCompleted(ctx, "/r", s)

	snap := m.Snapshot()
	if snap.StepsRendered != 1 || snap.SubmissionsOK != 2 || snap.SubmissionsFailed != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.ResolvePasses != 2 || snap.FlowsCompleted != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.AvgSubmitDuration != 3*time.Millisecond {
		t.Fatalf("expected avg 3ms, got %v", snap.AvgSubmitDuration)
	}
}
