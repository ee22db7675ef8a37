package resolve

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/petrijr/formflow/pkg/api"
)

// UserTarget is the plan target name of the user-profile record.
const UserTarget = "user"

// SavePlan is the set of writes derived from one submission.
//
// Tables maps table -> column -> value. A value of type map[string]any is
// a JSON object merged into the column rather than a plain overwrite.
// User maps user attributes to values.
//
// A plan is recomputed from scratch on every pass and never persisted.
type SavePlan struct {
	Tables map[string]map[string]any
	User   map[string]any
}

func newPlan() SavePlan {
	return SavePlan{
		Tables: make(map[string]map[string]any),
		User:   make(map[string]any),
	}
}

func (p SavePlan) table(name string) map[string]any {
	cols, ok := p.Tables[name]
	if !ok {
		cols = make(map[string]any)
		p.Tables[name] = cols
	}
	return cols
}

// IsEmpty reports whether the plan contains no writes at all.
func (p SavePlan) IsEmpty() bool {
	for _, cols := range p.Tables {
		if len(cols) > 0 {
			return false
		}
	}
	return len(p.User) == 0
}

// Targets lists the tables of the plan in execution order, followed by
// UserTarget when the plan touches the user record.
func (p SavePlan) Targets() []string {
	out := make([]string, 0, len(p.Tables)+1)
	for _, t := range sortedTables(p.Tables) {
		if len(p.Tables[t]) > 0 {
			out = append(out, t)
		}
	}
	if len(p.User) > 0 {
		out = append(out, UserTarget)
	}
	return out
}

// Equal compares two plans structurally. Map ordering is irrelevant and
// empty tables are treated as absent.
func (p SavePlan) Equal(o SavePlan) bool {
	if !targetsEqual(p.Tables, o.Tables) {
		return false
	}
	return valuesEqual(p.User, o.User)
}

func targetsEqual(a, b map[string]map[string]any) bool {
	for name, cols := range a {
		if !valuesEqual(cols, b[name]) {
			return false
		}
	}
	for name, cols := range b {
		if _, ok := a[name]; !ok && len(cols) > 0 {
			return false
		}
	}
	return true
}

func valuesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		am, aIsObj := av.(map[string]any)
		bm, bIsObj := bv.(map[string]any)
		if aIsObj != bIsObj {
			return false
		}
		if aIsObj {
			if !valuesEqual(am, bm) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

func sortedTables(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DerivePlan routes every field value of step into a fresh plan, then adds
// each declared association that the plan does not already set and whose
// source value is present in state.
//
// DerivePlan never writes anything and never changes state; calling it
// twice with the same inputs yields equal plans.
func DerivePlan(step api.StepForm, values map[string]any, storage api.StorageMap, state api.FlowState) (SavePlan, error) {
	plan := newPlan()

	for _, f := range step.Fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		switch s := f.Storage.(type) {
		case nil:
		case api.Column:
			plan.table(s.Table)[s.Column] = v
		case api.JSONPath:
			cols := plan.table(s.Table)
			obj, isObj := cols[s.Column].(map[string]any)
			if !isObj {
				obj = make(map[string]any)
				cols[s.Column] = obj
			}
			obj[s.Path] = v
		case api.UserAttribute:
			plan.User[s.Attribute] = v
		default:
			return SavePlan{}, fmt.Errorf("field %q: unsupported storage %T", f.Name, s)
		}
	}

	for table, ts := range storage.Tables {
		for column, assoc := range ts.Associations {
			if _, set := plan.Tables[table][column]; set {
				continue
			}
			v, ok, err := associationValue(assoc, state)
			if err != nil {
				return SavePlan{}, fmt.Errorf("table %q column %q: %w", table, column, err)
			}
			if ok {
				plan.table(table)[column] = v
			}
		}
	}

	return plan, nil
}

func associationValue(a api.Association, state api.FlowState) (any, bool, error) {
	switch a := a.(type) {
	case api.UserAssociation:
		v, ok := state.User[a.Attribute]
		if !ok || v == nil || v == "" {
			return nil, false, nil
		}
		return v, true, nil
	case api.RowAssociation:
		id, ok := state.Rows[a.Table]
		return id, ok, nil
	default:
		return nil, false, fmt.Errorf("unsupported association %T", a)
	}
}
