// Package definition loads flow definitions ("settings documents") and
// serves them by route.
//
// A settings document has the shape
//
//	forms:
//	  - action: /signup
//	    fields:
//	      - name: email
//	        required: true
//	        storage: {type: user, field: email}
//	      - name: color
//	        storage: {type: sql_json, table: leads, column: prefs, json_path: color}
//	storage:
//	  sql:
//	    leads:
//	      primary_key: id
//	      fields:
//	        user_id: {storage: user, field: user_id}
//	page:
//	  title: Sign up
//
// The storage types "mysql" and "mysql_json" are accepted as aliases of
// "sql" and "sql_json", and so is a top-level "mysql" storage section.
package definition

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/formflow/pkg/api"
)

type settingsDoc struct {
	Forms   []formDoc                      `mapstructure:"forms"`
	Storage map[string]map[string]tableDoc `mapstructure:"storage"`
	Page    map[string]string              `mapstructure:"page"`
}

type formDoc struct {
	Fields   []fieldDoc `mapstructure:"fields"`
	Action   string     `mapstructure:"action"`
	Redirect string     `mapstructure:"redirect"`
	Method   string     `mapstructure:"method"`
	Validate bool       `mapstructure:"validate"`
}

type fieldDoc struct {
	Name     string      `mapstructure:"name"`
	Type     string      `mapstructure:"type"`
	Label    string      `mapstructure:"label"`
	Required bool        `mapstructure:"required"`
	Value    string      `mapstructure:"value"`
	Storage  *storageDoc `mapstructure:"storage"`
}

type storageDoc struct {
	Type     string `mapstructure:"type"`
	Table    string `mapstructure:"table"`
	Column   string `mapstructure:"column"`
	JSONPath string `mapstructure:"json_path"`
	Field    string `mapstructure:"field"`
}

type tableDoc struct {
	PrimaryKey string              `mapstructure:"primary_key"`
	Fields     map[string]assocDoc `mapstructure:"fields"`
}

type assocDoc struct {
	Storage string `mapstructure:"storage"`
	Field   string `mapstructure:"field"`
	Table   string `mapstructure:"table"`
}

// ParseJSON decodes a JSON settings document.
func ParseJSON(data []byte) (api.FlowDefinition, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return api.FlowDefinition{}, fmt.Errorf("%w: %v", api.ErrInvalidDefinition, err)
	}
	return Decode(raw)
}

// ParseYAML decodes a YAML settings document. JSON documents are valid
// YAML and decode the same way.
func ParseYAML(data []byte) (api.FlowDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return api.FlowDefinition{}, fmt.Errorf("%w: %v", api.ErrInvalidDefinition, err)
	}
	return Decode(raw)
}

// Decode converts a generic settings document into a FlowDefinition and
// checks it structurally. Errors wrap api.ErrInvalidDefinition.
func Decode(raw map[string]any) (api.FlowDefinition, error) {
	if raw == nil {
		return api.FlowDefinition{}, fmt.Errorf("%w: empty document", api.ErrInvalidDefinition)
	}

	var doc settingsDoc
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return api.FlowDefinition{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return api.FlowDefinition{}, fmt.Errorf("%w: %v", api.ErrInvalidDefinition, err)
	}

	def, err := doc.toDefinition()
	if err != nil {
		return api.FlowDefinition{}, fmt.Errorf("%w: %v", api.ErrInvalidDefinition, err)
	}
	return def, nil
}

func (d settingsDoc) toDefinition() (api.FlowDefinition, error) {
	if len(d.Forms) == 0 {
		return api.FlowDefinition{}, errors.New("no forms")
	}

	def := api.FlowDefinition{
		Steps:   make([]api.StepForm, 0, len(d.Forms)),
		Storage: api.StorageMap{Tables: make(map[string]api.TableStorage)},
		Page:    d.Page,
	}

	for i, f := range d.Forms {
		step, err := f.toStep()
		if err != nil {
			return api.FlowDefinition{}, fmt.Errorf("form %d: %w", i, err)
		}
		def.Steps = append(def.Steps, step)
	}

	for kind, tables := range d.Storage {
		if kind != "sql" && kind != "mysql" {
			return api.FlowDefinition{}, fmt.Errorf("unknown storage section %q", kind)
		}
		for name, t := range tables {
			if _, dup := def.Storage.Tables[name]; dup {
				return api.FlowDefinition{}, fmt.Errorf("table %q declared twice", name)
			}
			ts, err := t.toTableStorage()
			if err != nil {
				return api.FlowDefinition{}, fmt.Errorf("table %q: %w", name, err)
			}
			def.Storage.Tables[name] = ts
		}
	}

	return def, nil
}

func (f formDoc) toStep() (api.StepForm, error) {
	step := api.StepForm{
		Action:   f.Action,
		Redirect: f.Redirect,
		Method:   f.Method,
		Validate: f.Validate,
		Fields:   make([]api.Field, 0, len(f.Fields)),
	}

	seen := make(map[string]bool, len(f.Fields))
	for _, fd := range f.Fields {
		if fd.Name == "" {
			return api.StepForm{}, errors.New("field without name")
		}
		if seen[fd.Name] {
			return api.StepForm{}, fmt.Errorf("duplicate field %q", fd.Name)
		}
		seen[fd.Name] = true

		storage, err := fd.Storage.toStorage()
		if err != nil {
			return api.StepForm{}, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		step.Fields = append(step.Fields, api.Field{
			Name:     fd.Name,
			Type:     fd.Type,
			Label:    fd.Label,
			Required: fd.Required,
			Value:    fd.Value,
			Storage:  storage,
		})
	}
	return step, nil
}

func (s *storageDoc) toStorage() (api.Storage, error) {
	if s == nil || s.Type == "" {
		return nil, nil
	}
	switch s.Type {
	case "sql", "mysql":
		if s.Table == "" || s.Column == "" {
			return nil, errors.New("sql storage needs table and column")
		}
		return api.Column{Table: s.Table, Column: s.Column}, nil
	case "sql_json", "mysql_json":
		if s.Table == "" || s.Column == "" || s.JSONPath == "" {
			return nil, errors.New("sql_json storage needs table, column and json_path")
		}
		return api.JSONPath{Table: s.Table, Column: s.Column, Path: s.JSONPath}, nil
	case "user":
		if s.Field == "" {
			return nil, errors.New("user storage needs field")
		}
		return api.UserAttribute{Attribute: s.Field}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", s.Type)
	}
}

func (t tableDoc) toTableStorage() (api.TableStorage, error) {
	ts := api.TableStorage{PrimaryKey: t.PrimaryKey}
	if len(t.Fields) == 0 {
		return ts, nil
	}

	ts.Associations = make(map[string]api.Association, len(t.Fields))
	for column, a := range t.Fields {
		switch a.Storage {
		case "user":
			if a.Field == "" {
				return api.TableStorage{}, fmt.Errorf("column %q: user association needs field", column)
			}
			ts.Associations[column] = api.UserAssociation{Attribute: a.Field}
		case "sql", "mysql":
			if a.Table == "" {
				return api.TableStorage{}, fmt.Errorf("column %q: row association needs table", column)
			}
			ts.Associations[column] = api.RowAssociation{Table: a.Table}
		default:
			return api.TableStorage{}, fmt.Errorf("column %q: unknown association %q", column, a.Storage)
		}
	}
	return ts, nil
}

// Encode renders def as a JSON settings document accepted by ParseJSON.
func Encode(def api.FlowDefinition) ([]byte, error) {
	doc := map[string]any{}

	forms := make([]map[string]any, 0, len(def.Steps))
	for _, s := range def.Steps {
		fields := make([]map[string]any, 0, len(s.Fields))
		for _, f := range s.Fields {
			fm := map[string]any{"name": f.Name}
			putString(fm, "type", f.Type)
			putString(fm, "label", f.Label)
			putString(fm, "value", f.Value)
			if f.Required {
				fm["required"] = true
			}
			switch st := f.Storage.(type) {
			case nil:
			case api.Column:
				fm["storage"] = map[string]any{"type": "sql", "table": st.Table, "column": st.Column}
			case api.JSONPath:
				fm["storage"] = map[string]any{"type": "sql_json", "table": st.Table, "column": st.Column, "json_path": st.Path}
			case api.UserAttribute:
				fm["storage"] = map[string]any{"type": "user", "field": st.Attribute}
			default:
				return nil, fmt.Errorf("field %q: unsupported storage %T", f.Name, st)
			}
			fields = append(fields, fm)
		}

		form := map[string]any{"fields": fields}
		putString(form, "action", s.Action)
		putString(form, "redirect", s.Redirect)
		putString(form, "method", s.Method)
		if s.Validate {
			form["validate"] = true
		}
		forms = append(forms, form)
	}
	doc["forms"] = forms

	if len(def.Storage.Tables) > 0 {
		tables := make(map[string]any, len(def.Storage.Tables))
		for name, t := range def.Storage.Tables {
			tm := map[string]any{}
			putString(tm, "primary_key", t.PrimaryKey)
			if len(t.Associations) > 0 {
				assoc := make(map[string]any, len(t.Associations))
				for column, a := range t.Associations {
					switch a := a.(type) {
					case api.UserAssociation:
						assoc[column] = map[string]any{"storage": "user", "field": a.Attribute}
					case api.RowAssociation:
						assoc[column] = map[string]any{"storage": "sql", "table": a.Table}
					default:
						return nil, fmt.Errorf("table %q column %q: unsupported association %T", name, column, a)
					}
				}
				tm["fields"] = assoc
			}
			tables[name] = tm
		}
		doc["storage"] = map[string]any{"sql": tables}
	}

	if len(def.Page) > 0 {
		doc["page"] = def.Page
	}

	return json.Marshal(doc)
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
