// Package validate resolves raw submitted values against a step's fields.
package validate

import (
	"strings"

	"github.com/petrijr/formflow/pkg/api"
)

// Validate returns the resolved value of every field in step.
//
// A required field with an empty submission is rejected with
// *api.ValidationError. An empty submission falls back to the field's
// default value when one is declared; otherwise the submitted value is
// used as is, possibly empty.
func Validate(step api.StepForm, raw map[string]string) (map[string]any, error) {
	values := make(map[string]any, len(step.Fields))
	for _, f := range step.Fields {
		if f.Name == "" {
			continue
		}
		v := raw[f.Name]
		empty := strings.TrimSpace(v) == ""

		if empty && f.Required {
			return nil, &api.ValidationError{Field: f.Name, Reason: "is required"}
		}

		if empty && f.Value != "" {
			values[f.Name] = f.Value
			continue
		}
		values[f.Name] = v
	}
	return values, nil
}
