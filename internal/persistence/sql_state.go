package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/formflow/pkg/api"
)

// SQLStateStore is a StateStore backed by a relational table:
//
//	flow_states(session_id, route, state, updated_at)
//	PRIMARY KEY (session_id, route)
//
// The state column holds the gob-encoded FlowState.
type SQLStateStore struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure SQLStateStore implements StateStore.
var _ api.StateStore = (*SQLStateStore)(nil)

// NewSQLStateStore initializes the required schema in the given database
// and returns a new SQLStateStore.
func NewSQLStateStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStateStore, error) {
	s := &SQLStateStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStateStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS flow_states (
			session_id %[1]s NOT NULL,
			route %[1]s NOT NULL,
			state %[2]s,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (session_id, route)
		)`, s.dialect.KeyText, s.dialect.Blob),
	)
	return err
}

func (s *SQLStateStore) GetFlowState(ctx context.Context, session api.Session, route string) (api.FlowState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT state FROM flow_states WHERE session_id = "+s.dialect.Placeholder(1)+
			" AND route = "+s.dialect.Placeholder(2),
		session.ID, route,
	)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return api.FlowState{}, ErrStateNotFound
		}
		return api.FlowState{}, err
	}

	return DecodeState(data)
}

func (s *SQLStateStore) PutFlowState(ctx context.Context, session api.Session, route string, state api.FlowState) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	query := s.dialect.Upsert("flow_states",
		[]string{"session_id", "route"},
		[]string{"session_id", "route", "state", "updated_at"},
	)
	_, err = s.db.ExecContext(ctx, query, session.ID, route, data, time.Now().Unix())
	return err
}
