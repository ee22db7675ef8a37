package api

import "context"

// DefinitionProvider returns the flow bound to a route.
// Missing or malformed definitions are reported as *DefinitionError.
type DefinitionProvider interface {
	GetFormDefinition(ctx context.Context, route string) (FlowDefinition, error)
}

// StateStore keeps FlowState per visitor session and route.
// GetFlowState returns ErrStateNotFound when nothing is stored.
type StateStore interface {
	GetFlowState(ctx context.Context, session Session, route string) (FlowState, error)
	PutFlowState(ctx context.Context, session Session, route string, state FlowState) error
}

// RowStore is the relational backend used by the save-resolution engine.
type RowStore interface {
	// InsertRow inserts a row and returns its primary key value.
	InsertRow(ctx context.Context, table, primaryKey string, columns map[string]any) (int64, error)
	// UpdateRow overwrites the given columns of the row keyed by id.
	UpdateRow(ctx context.Context, table, primaryKey string, id int64, columns map[string]any) error
	// SelectRow returns all columns of the row keyed by id, or ErrRowNotFound.
	SelectRow(ctx context.Context, table, primaryKey string, id int64) (map[string]any, error)
}

// UserStore is the user-profile backend.
type UserStore interface {
	// CreateOrGetUser returns the id of the user with the given email,
	// creating the user when needed.
	CreateOrGetUser(ctx context.Context, email string) (int64, error)
	// SubscribeUser subscribes a user to a mailing list. Subscribing twice
	// is not an error.
	SubscribeUser(ctx context.Context, userID int64, listID string) error
}
