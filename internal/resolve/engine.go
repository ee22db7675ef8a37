// Package resolve turns a validated submission into persistent writes.
//
// The engine derives a SavePlan from the submitted values, the flow's
// StorageMap and the current FlowState, executes it, and re-derives it
// until the plan stops changing. Re-deriving is what lets a row pick up
// identifiers created earlier in the same submission, such as the id of a
// user created from an email field or of a parent row.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"

	"github.com/petrijr/formflow/pkg/api"
)

var (
	errNoUser       = errors.New("no user known for this flow")
	errNotConverged = errors.New("write plan did not converge")
)

// Engine is the save-resolution engine.
type Engine struct {
	rows     api.RowStore
	users    api.UserStore
	observer api.Observer
}

// Config describes how to construct an Engine.
type Config struct {
	Rows     api.RowStore
	Users    api.UserStore
	Observer api.Observer
}

// NewEngine creates a new Engine using the given configuration.
func NewEngine(cfg Config) *Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &Engine{
		rows:     cfg.Rows,
		users:    cfg.Users,
		observer: obs,
	}
}

// Resolve persists values and returns the updated state.
//
// The returned state always reflects the writes that happened, also when an
// error is returned: writes are not rolled back, and the caller decides
// whether the state is kept. state itself is never modified.
//
// With k association slots in storage, Resolve executes at most k+1 plans.
func (e *Engine) Resolve(ctx context.Context, step api.StepForm, values map[string]any, storage api.StorageMap, state api.FlowState) (api.FlowState, error) {
	st := state.Clone()
	maxPasses := storage.AssociationCount() + 1

	plan, err := DerivePlan(step, values, storage, st)
	if err != nil {
		return st, &api.PersistenceError{Op: "plan", Err: err}
	}
	if plan.IsEmpty() {
		return st, nil
	}
	prev := newPlan()
	subscribed := make(map[subscription]bool)

	for pass := 1; !plan.Equal(prev); pass++ {
		if pass > maxPasses {
			return st, &api.PersistenceError{
				Op:  "resolve",
				Err: fmt.Errorf("%w after %d passes", errNotConverged, maxPasses),
			}
		}

		if err := e.executePlan(ctx, plan, storage, &st, subscribed); err != nil {
			return st, err
		}
		e.observer.OnResolvePass(ctx, pass, plan.Targets())

		prev = plan
		plan, err = DerivePlan(step, values, storage, st)
		if err != nil {
			return st, &api.PersistenceError{Op: "plan", Err: err}
		}
	}

	return st, nil
}

// subscription is a (user, list) pair already subscribed during one Resolve.
type subscription struct {
	userID int64
	listID string
}

func (e *Engine) executePlan(ctx context.Context, plan SavePlan, storage api.StorageMap, st *api.FlowState, subscribed map[subscription]bool) error {
	for _, table := range sortedTables(plan.Tables) {
		cols := plan.Tables[table]
		if len(cols) == 0 {
			continue
		}
		pk := storage.Tables[table].Key()

		if id, ok := st.Rows[table]; ok {
			if err := e.updateRow(ctx, table, pk, id, cols); err != nil {
				return err
			}
			continue
		}

		insert, err := encodeColumns(cols)
		if err != nil {
			return &api.PersistenceError{Op: "encode", Table: table, Err: err}
		}
		id, err := e.rows.InsertRow(ctx, table, pk, insert)
		if err != nil {
			return &api.PersistenceError{Op: "insert", Table: table, Err: err}
		}
		st.Rows[table] = id
	}

	if len(plan.User) > 0 {
		return e.executeUser(ctx, plan.User, st, subscribed)
	}
	return nil
}

// updateRow overwrites plain columns and merges JSON columns into the
// stored objects. The row is read at most once.
func (e *Engine) updateRow(ctx context.Context, table, pk string, id int64, cols map[string]any) error {
	var current map[string]any
	update := make(map[string]any, len(cols))

	for column, v := range cols {
		obj, isObj := v.(map[string]any)
		if !isObj {
			update[column] = v
			continue
		}

		if current == nil {
			row, err := e.rows.SelectRow(ctx, table, pk, id)
			if err != nil {
				return &api.PersistenceError{Op: "select", Table: table, Err: err}
			}
			current = row
		}

		stored, err := decodeObject(current[column])
		if err != nil {
			return &api.PersistenceError{
				Op:    "merge",
				Table: table,
				Err:   fmt.Errorf("column %q: %w", column, err),
			}
		}
		merged, err := json.Marshal(mergeObjects(stored, obj))
		if err != nil {
			return &api.PersistenceError{Op: "encode", Table: table, Err: err}
		}
		update[column] = string(merged)
	}

	if err := e.rows.UpdateRow(ctx, table, pk, id, update); err != nil {
		return &api.PersistenceError{Op: "update", Table: table, Err: err}
	}
	return nil
}

// executeUser creates the user and subscribes it. A subscription is an
// action: it runs at most once per Resolve even when later passes repeat it.
func (e *Engine) executeUser(ctx context.Context, attrs map[string]any, st *api.FlowState, subscribed map[subscription]bool) error {
	var (
		userID   int64
		haveUser bool
	)

	if raw := stringValue(attrs[api.UserEmail]); raw != "" {
		email, err := normalizeEmail(raw)
		if err != nil {
			return &api.UserCreationError{Email: raw, Err: err}
		}
		id, err := e.users.CreateOrGetUser(ctx, email)
		if err != nil {
			return &api.UserCreationError{Email: email, Err: err}
		}
		st.User[api.UserID] = id
		st.User[api.UserEmail] = email
		userID, haveUser = id, true
	}

	if listID := stringValue(attrs[api.UserListID]); listID != "" {
		if !haveUser {
			userID, haveUser = knownUserID(st.User)
		}
		if !haveUser {
			return &api.UserCreationError{Err: errNoUser}
		}
		key := subscription{userID: userID, listID: listID}
		if subscribed[key] {
			return nil
		}
		if err := e.users.SubscribeUser(ctx, userID, listID); err != nil {
			return &api.PersistenceError{Op: "subscribe", Table: UserTarget, Err: err}
		}
		subscribed[key] = true
	}

	return nil
}

func encodeColumns(cols map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(cols))
	for column, v := range cols {
		if obj, ok := v.(map[string]any); ok {
			b, err := json.Marshal(obj)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", column, err)
			}
			out[column] = string(b)
			continue
		}
		out[column] = v
	}
	return out, nil
}

// decodeObject decodes a stored JSON column. NULL and empty values decode
// to an empty object.
func decodeObject(v any) (map[string]any, error) {
	var data []byte
	switch v := v.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("stored value of type %T is not JSON", v)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}

	// Numbers stay json.Number so unrelated keys are written back verbatim.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode stored JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode stored JSON: trailing data")
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// mergeObjects is a shallow merge; keys of next win.
func mergeObjects(stored, next map[string]any) map[string]any {
	out := make(map[string]any, len(stored)+len(next))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

// normalizeEmail accepts a bare address only; display names and angle
// brackets are rejected rather than stripped.
func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("malformed email: %w", err)
	}
	if addr.Address != trimmed {
		return "", fmt.Errorf("malformed email: %q is not a bare address", trimmed)
	}
	return strings.ToLower(addr.Address), nil
}

func knownUserID(attrs map[string]any) (int64, bool) {
	switch v := attrs[api.UserID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
