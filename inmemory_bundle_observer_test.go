package formflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingObserver remembers resolve passes per call.
type recordingObserver struct {
	NoopObserver

	mu     sync.Mutex
	passes [][]string
}

func (r *recordingObserver) OnResolvePass(ctx context.Context, pass int, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, targets)
}

// TestInMemoryBundleWithObserver verifies that a custom observer receives
// engine events next to the bundle's own metrics.
func TestInMemoryBundleWithObserver(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &recordingObserver{}
	b := NewInMemoryBundle(Options{
		Observer: rec,
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
	})

	flow := New().
		Step(
			Input("email").ToUser(UserEmail),
			Input("name").ToColumn("leads", "name"),
		).
		AssociateUser("leads", "user_id", UserID)
	require.NoError(t, b.Define(ctx, "/lead", flow.Definition()))

	_, err := b.Submit(ctx, Session{ID: "v"}, "/lead", map[string]string{
		"form-id": "0",
		"email":   "a@b.com",
		"name":    "Ada",
	})
	require.NoError(t, err)

	require.Equal(t, [][]string{{"leads", "user"}, {"leads", "user"}}, rec.passes)

	snap := b.Metrics()
	require.Equal(t, int64(1), snap.SubmissionsOK)
	require.Equal(t, int64(1), snap.FlowsCompleted)
	require.Equal(t, int64(2), snap.ResolvePasses)
	require.Greater(t, snap.AvgSubmitDuration, time.Duration(0))
}

// TestLoggingObserverWithNilLogger ensures NewLoggingObserver(nil) falls
// back to slog.Default and flows still complete.
func TestLoggingObserverWithNilLogger(t *testing.T) {
	t.Parallel()

	b := NewInMemoryBundle(Options{Observer: NewLoggingObserver(nil), Logger: quietLogger()})
	require.NoError(t, b.Define(context.Background(), "/one", New().Step(Input("x")).Definition()))

	out, err := b.Submit(context.Background(), Session{ID: "v"}, "/one", map[string]string{"form-id": "0"})
	require.NoError(t, err)
	require.True(t, out.Completed)
}
