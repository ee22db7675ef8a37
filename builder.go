package formflow

import (
	"fmt"

	"github.com/petrijr/formflow/pkg/api"
)

// FlowBuilder provides a fluent API for defining form flows:
//
//	flow := formflow.New().
//	    Page("title", "Sign up").
//	    Step(
//	        formflow.Input("email").Type("email").Required().ToUser(formflow.UserEmail),
//	        formflow.Input("name").ToColumn("leads", "name"),
//	    ).
//	    Redirect("/thanks").
//	    AssociateUser("leads", "user_id", formflow.UserID)
//
//	if err := bundle.Define(ctx, "/signup", flow.Definition()); err != nil {
//	    log.Fatal(err)
//	}
type FlowBuilder struct {
	def api.FlowDefinition
}

// New creates an empty flow builder.
func New() *FlowBuilder {
	return &FlowBuilder{
		def: api.FlowDefinition{
			Steps:   make([]api.StepForm, 0),
			Storage: api.StorageMap{Tables: make(map[string]api.TableStorage)},
		},
	}
}

// Definition returns the built FlowDefinition.
func (b *FlowBuilder) Definition() FlowDefinition {
	return b.def
}

// Step appends a form step posting back to the flow's own route.
func (b *FlowBuilder) Step(fields ...*FieldBuilder) *FlowBuilder {
	return b.StepWithAction("", fields...)
}

// StepWithAction appends a form step posting to action.
func (b *FlowBuilder) StepWithAction(action string, fields ...*FieldBuilder) *FlowBuilder {
	step := api.StepForm{Action: action, Fields: make([]api.Field, 0, len(fields))}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == nil {
			panic("formflow: nil field")
		}
		if seen[f.field.Name] {
			panic(fmt.Sprintf("formflow: duplicate field %q in step %d", f.field.Name, len(b.def.Steps)))
		}
		seen[f.field.Name] = true
		step.Fields = append(step.Fields, f.field)
	}

	b.def.Steps = append(b.def.Steps, step)
	return b
}

// Redirect appends a step that sends the visitor to target without
// collecting data.
func (b *FlowBuilder) Redirect(target string) *FlowBuilder {
	if target == "" {
		panic("formflow: redirect target must not be empty")
	}
	b.def.Steps = append(b.def.Steps, api.StepForm{Redirect: target})
	return b
}

// Page sets a page attribute such as "title".
func (b *FlowBuilder) Page(key, value string) *FlowBuilder {
	if b.def.Page == nil {
		b.def.Page = make(map[string]string)
	}
	b.def.Page[key] = value
	return b
}

// PrimaryKey sets the primary key column of table (default "id").
func (b *FlowBuilder) PrimaryKey(table, column string) *FlowBuilder {
	ts := b.def.Storage.Tables[table]
	ts.PrimaryKey = column
	b.def.Storage.Tables[table] = ts
	return b
}

// AssociateUser fills table.column with a known user attribute.
func (b *FlowBuilder) AssociateUser(table, column, attribute string) *FlowBuilder {
	return b.associate(table, column, api.UserAssociation{Attribute: attribute})
}

// AssociateRow fills table.column with the id of the row created for
// parent in the same flow.
func (b *FlowBuilder) AssociateRow(table, column, parent string) *FlowBuilder {
	if table == parent {
		panic(fmt.Sprintf("formflow: table %q cannot reference itself", table))
	}
	return b.associate(table, column, api.RowAssociation{Table: parent})
}

func (b *FlowBuilder) associate(table, column string, a api.Association) *FlowBuilder {
	if table == "" || column == "" {
		panic("formflow: association needs table and column")
	}
	ts := b.def.Storage.Tables[table]
	if ts.Associations == nil {
		ts.Associations = make(map[string]api.Association)
	}
	ts.Associations[column] = a
	b.def.Storage.Tables[table] = ts
	return b
}

// FieldBuilder builds a single input of a step.
type FieldBuilder struct {
	field api.Field
}

// Input starts a field named name.
func Input(name string) *FieldBuilder {
	if name == "" {
		panic("formflow: field name must not be empty")
	}
	return &FieldBuilder{field: api.Field{Name: name}}
}

func (f *FieldBuilder) Type(t string) *FieldBuilder {
	f.field.Type = t
	return f
}

func (f *FieldBuilder) Label(l string) *FieldBuilder {
	f.field.Label = l
	return f
}

func (f *FieldBuilder) Required() *FieldBuilder {
	f.field.Required = true
	return f
}

// Default sets the value used when the submission is empty.
func (f *FieldBuilder) Default(v string) *FieldBuilder {
	f.field.Value = v
	return f
}

// ToColumn stores the value in table.column.
func (f *FieldBuilder) ToColumn(table, column string) *FieldBuilder {
	f.field.Storage = api.Column{Table: table, Column: column}
	return f
}

// ToJSON stores the value under path of the JSON object in table.column.
func (f *FieldBuilder) ToJSON(table, column, path string) *FieldBuilder {
	f.field.Storage = api.JSONPath{Table: table, Column: column, Path: path}
	return f
}

// ToUser stores the value as a user attribute.
func (f *FieldBuilder) ToUser(attribute string) *FieldBuilder {
	f.field.Storage = api.UserAttribute{Attribute: attribute}
	return f
}
