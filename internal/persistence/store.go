package persistence

import (
	"github.com/petrijr/formflow/pkg/api"
)

// Re-exported so store implementations and callers share one set of
// sentinel errors.
var (
	// ErrStateNotFound is returned when a session has no state for a route.
	ErrStateNotFound = api.ErrStateNotFound

	// ErrRowNotFound is returned when a keyed row does not exist.
	ErrRowNotFound = api.ErrRowNotFound
)

// stateKey identifies one FlowState: a visitor session and a route.
type stateKey struct {
	Session string
	Route   string
}
