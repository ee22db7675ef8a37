package persistence

import (
	"testing"

	"github.com/petrijr/formflow/pkg/api"
)

func TestEncodeDecodeState_PreservesIDs(t *testing.T) {
	st := api.NewFlowState()
	st.StepIndex = 2
	st.Rows["leads"] = 41
	st.User[api.UserID] = int64(7)
	st.User[api.UserEmail] = "a@b.com"

	data, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState failed: %v", err)
	}

	got, err := DecodeState(data)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}

	if got.StepIndex != 2 {
		t.Fatalf("expected StepIndex 2, got %d", got.StepIndex)
	}
	if got.Rows["leads"] != 41 {
		t.Fatalf("expected leads row 41, got %d", got.Rows["leads"])
	}
	id, ok := got.User[api.UserID].(int64)
	if !ok || id != 7 {
		t.Fatalf("expected int64 user id 7, got %#v", got.User[api.UserID])
	}
	if got.User[api.UserEmail] != "a@b.com" {
		t.Fatalf("unexpected email: %v", got.User[api.UserEmail])
	}
}

func TestDecodeState_EmptyInputYieldsFreshState(t *testing.T) {
	got, err := DecodeState(nil)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if got.StepIndex != 0 || got.Rows == nil || got.User == nil {
		t.Fatalf("expected fresh state with maps, got %+v", got)
	}
}

func TestDecodeState_Garbage(t *testing.T) {
	if _, err := DecodeState([]byte("not gob")); err == nil {
		t.Fatalf("expected error decoding garbage")
	}
}
