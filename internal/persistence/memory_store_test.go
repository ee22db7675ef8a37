package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/formflow/pkg/api"
)

func TestInMemoryStore_PutAndGetFlowState(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	sess := api.Session{ID: "s-1"}

	st := api.NewFlowState()
	st.StepIndex = 1
	st.Rows["leads"] = 3

	if err := store.PutFlowState(ctx, sess, "/signup", st); err != nil {
		t.Fatalf("PutFlowState failed: %v", err)
	}

	got, err := store.GetFlowState(ctx, sess, "/signup")
	if err != nil {
		t.Fatalf("GetFlowState failed: %v", err)
	}
	if got.StepIndex != 1 || got.Rows["leads"] != 3 {
		t.Fatalf("unexpected state: %+v", got)
	}

	// Mutating the returned copy must not leak into the store.
	got.Rows["leads"] = 99
	again, _ := store.GetFlowState(ctx, sess, "/signup")
	if again.Rows["leads"] != 3 {
		t.Fatalf("store state was mutated through a returned copy")
	}
}

func TestInMemoryStore_FlowStateScopedBySessionAndRoute(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	if err := store.PutFlowState(ctx, api.Session{ID: "a"}, "/one", api.NewFlowState()); err != nil {
		t.Fatalf("PutFlowState failed: %v", err)
	}

	for _, tc := range []struct {
		session, route string
	}{
		{"b", "/one"},
		{"a", "/two"},
	} {
		_, err := store.GetFlowState(ctx, api.Session{ID: tc.session}, tc.route)
		if !errors.Is(err, ErrStateNotFound) {
			t.Fatalf("expected ErrStateNotFound for %+v, got %v", tc, err)
		}
	}
}

func TestInMemoryStore_RowLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	id, err := store.InsertRow(ctx, "leads", "id", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("InsertRow failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}

	if err := store.UpdateRow(ctx, "leads", "id", id, map[string]any{"name": "Grace", "age": "36"}); err != nil {
		t.Fatalf("UpdateRow failed: %v", err)
	}

	row, err := store.SelectRow(ctx, "leads", "id", id)
	if err != nil {
		t.Fatalf("SelectRow failed: %v", err)
	}
	if row["name"] != "Grace" || row["age"] != "36" || row["id"] != int64(1) {
		t.Fatalf("unexpected row: %+v", row)
	}

	if err := store.UpdateRow(ctx, "leads", "id", 42, map[string]any{"name": "x"}); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
	if _, err := store.SelectRow(ctx, "missing", "id", 1); !errors.Is(err, ErrRowNotFound) {
		t.Fatalf("expected ErrRowNotFound, got %v", err)
	}
}

func TestInMemoryStore_Users(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	id1, err := store.CreateOrGetUser(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CreateOrGetUser failed: %v", err)
	}
	id2, _ := store.CreateOrGetUser(ctx, "a@b.com")
	if id1 != id2 {
		t.Fatalf("expected same id for same email, got %d and %d", id1, id2)
	}
	other, _ := store.CreateOrGetUser(ctx, "c@d.com")
	if other == id1 {
		t.Fatalf("expected distinct ids for distinct emails")
	}

	for i := 0; i < 2; i++ {
		if err := store.SubscribeUser(ctx, id1, "news"); err != nil {
			t.Fatalf("SubscribeUser failed: %v", err)
		}
	}
	lists, _ := store.Subscriptions(ctx, id1)
	if len(lists) != 1 || lists[0] != "news" {
		t.Fatalf("unexpected subscriptions: %v", lists)
	}
}
