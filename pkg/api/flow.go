package api

import "strings"

// HiddenStepField is the name of the hidden input that carries the step
// index from a rendered form back to the POST handler.
const HiddenStepField = "form-id"

// SubmitLabel is the label of the submit control appended to each step.
const SubmitLabel = "Continue"

// FlowDefinition describes a multi-step form flow bound to one route.
type FlowDefinition struct {
	Steps   []StepForm
	Storage StorageMap

	// Page holds page attributes (title, description, ...) applied when a
	// step of this flow is rendered.
	Page map[string]string
}

// StepForm is one form in a flow.
type StepForm struct {
	Fields []Field

	// Action is the form target. Empty means the flow's own route.
	Action string

	// Redirect, when set, makes the step a pure redirect: loading it
	// consumes the step without collecting data.
	Redirect string

	// Method and Validate are rendering hints only.
	Method   string
	Validate bool
}

// Field is a single input of a step.
type Field struct {
	Name     string
	Type     string
	Label    string
	Required bool

	// Value is the default used when the submitted value is empty.
	Value string

	// Storage says where the resolved value is written. Nil means the
	// value is collected but not stored.
	Storage Storage
}

// Storage is the destination of a field value. The set of variants is
// closed: Column, JSONPath and UserAttribute.
type Storage interface {
	isStorage()
}

// Column stores a value in one relational column.
type Column struct {
	Table  string
	Column string
}

// JSONPath stores a value under one key of a JSON object kept in a
// relational column.
type JSONPath struct {
	Table  string
	Column string
	Path   string
}

// UserAttribute stores a value on the user-profile record.
type UserAttribute struct {
	Attribute string
}

func (Column) isStorage()        {}
func (JSONPath) isStorage()      {}
func (UserAttribute) isStorage() {}

// Well-known user attributes.
const (
	UserEmail  = "email"
	UserListID = "list_id"
	UserID     = "user_id"
)

// StorageMap declares, per relational table, how rows are keyed and which
// values are copied forward from data already known in the flow.
type StorageMap struct {
	Tables map[string]TableStorage
}

// TableStorage describes one relational table used by a flow.
type TableStorage struct {
	// PrimaryKey defaults to "id" when empty.
	PrimaryKey string

	// Associations maps a column to the source of its value.
	Associations map[string]Association
}

// Key returns the primary key column, applying the default.
func (t TableStorage) Key() string {
	if t.PrimaryKey == "" {
		return "id"
	}
	return t.PrimaryKey
}

// AssociationCount returns the number of association slots declared in m.
func (m StorageMap) AssociationCount() int {
	n := 0
	for _, t := range m.Tables {
		n += len(t.Associations)
	}
	return n
}

// Association is the source of a value copied into a column when the
// current submission does not set it. Variants: UserAssociation and
// RowAssociation.
type Association interface {
	isAssociation()
}

// UserAssociation copies a known user attribute (for example user_id).
type UserAssociation struct {
	Attribute string
}

// RowAssociation copies the id of the row already created for Table in
// this flow, typically a parent row referenced by a foreign key.
type RowAssociation struct {
	Table string
}

func (UserAssociation) isAssociation() {}
func (RowAssociation) isAssociation()  {}

// FlowState is the per-route, per-visitor state carried between steps.
type FlowState struct {
	StepIndex int

	// Rows maps a table to the id of the row created for it in this flow.
	Rows map[string]int64

	// User holds user attributes established during the flow.
	User map[string]any
}

// NewFlowState returns an empty state positioned on the first step.
func NewFlowState() FlowState {
	return FlowState{
		Rows: make(map[string]int64),
		User: make(map[string]any),
	}
}

// Clone returns a deep copy of s with non-nil maps.
func (s FlowState) Clone() FlowState {
	out := FlowState{
		StepIndex: s.StepIndex,
		Rows:      make(map[string]int64, len(s.Rows)),
		User:      make(map[string]any, len(s.User)),
	}
	for k, v := range s.Rows {
		out.Rows[k] = v
	}
	for k, v := range s.User {
		out.User[k] = v
	}
	return out
}

// Session identifies one visitor. It is built once per request and passed
// down explicitly.
type Session struct {
	ID string
}

// NormalizeRoute maps request paths to definition keys: a leading slash,
// no trailing slash (except for the root route).
func NormalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
		if route == "" {
			route = "/"
		}
	}
	return route
}
