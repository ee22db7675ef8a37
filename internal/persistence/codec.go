package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/petrijr/formflow/pkg/api"
)

// statePayload is the serialized form of api.FlowState.
//
// User attributes are stored as interface values so ids keep their
// integer type across a round trip. Only gob's pre-registered basic types
// are expected there.
type statePayload struct {
	StepIndex int
	Rows      map[string]int64
	User      map[string]any
}

// EncodeState serializes a FlowState using encoding/gob.
func EncodeState(s api.FlowState) ([]byte, error) {
	payload := statePayload{
		StepIndex: s.StepIndex,
		Rows:      s.Rows,
		User:      s.User,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, fmt.Errorf("encode flow state: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeState is the inverse of EncodeState. Empty input decodes to a
// fresh state.
func DecodeState(data []byte) (api.FlowState, error) {
	if len(data) == 0 {
		return api.NewFlowState(), nil
	}
	var payload statePayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return api.FlowState{}, fmt.Errorf("decode flow state: %w", err)
	}
	st := api.FlowState{
		StepIndex: payload.StepIndex,
		Rows:      payload.Rows,
		User:      payload.User,
	}
	// Clone fills nil maps; gob omits empty ones.
	return st.Clone(), nil
}
