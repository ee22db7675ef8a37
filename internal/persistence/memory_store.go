package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/petrijr/formflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of StateStore,
// RowStore and UserStore backed by maps.
type InMemoryStore struct {
	mu sync.RWMutex

	states map[stateKey]api.FlowState

	tables map[string]map[int64]map[string]any
	nextID map[string]int64

	users         map[string]int64
	nextUserID    int64
	subscriptions map[int64]map[string]struct{}
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:        make(map[stateKey]api.FlowState),
		tables:        make(map[string]map[int64]map[string]any),
		nextID:        make(map[string]int64),
		users:         make(map[string]int64),
		subscriptions: make(map[int64]map[string]struct{}),
	}
}

// Ensure InMemoryStore implements the interfaces.
var _ api.StateStore = (*InMemoryStore)(nil)

var _ api.RowStore = (*InMemoryStore)(nil)

var _ api.UserStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) GetFlowState(ctx context.Context, session api.Session, route string) (api.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[stateKey{Session: session.ID, Route: route}]
	if !ok {
		return api.FlowState{}, ErrStateNotFound
	}
	return st.Clone(), nil
}

func (s *InMemoryStore) PutFlowState(ctx context.Context, session api.Session, route string, state api.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[stateKey{Session: session.ID, Route: route}] = state.Clone()
	return nil
}

func (s *InMemoryStore) InsertRow(ctx context.Context, table, primaryKey string, columns map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[int64]map[string]any)
		s.tables[table] = rows
	}
	s.nextID[table]++
	id := s.nextID[table]

	row := make(map[string]any, len(columns)+1)
	for k, v := range columns {
		row[k] = v
	}
	row[primaryKey] = id
	rows[id] = row

	return id, nil
}

func (s *InMemoryStore) UpdateRow(ctx context.Context, table, primaryKey string, id int64, columns map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tables[table][id]
	if !ok {
		return ErrRowNotFound
	}
	for k, v := range columns {
		row[k] = v
	}
	return nil
}

func (s *InMemoryStore) SelectRow(ctx context.Context, table, primaryKey string, id int64) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.tables[table][id]
	if !ok {
		return nil, ErrRowNotFound
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, nil
}

// RowCount returns the number of rows stored for table.
func (s *InMemoryStore) RowCount(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tables[table])
}

func (s *InMemoryStore) CreateOrGetUser(ctx context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.users[email]; ok {
		return id, nil
	}
	s.nextUserID++
	s.users[email] = s.nextUserID
	return s.nextUserID, nil
}

func (s *InMemoryStore) SubscribeUser(ctx context.Context, userID int64, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, ok := s.subscriptions[userID]
	if !ok {
		lists = make(map[string]struct{})
		s.subscriptions[userID] = lists
	}
	lists[listID] = struct{}{}
	return nil
}

// Subscriptions returns the list ids a user is subscribed to, sorted.
func (s *InMemoryStore) Subscriptions(ctx context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.subscriptions[userID]))
	for l := range s.subscriptions[userID] {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}
