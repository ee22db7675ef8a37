package definition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/formflow/pkg/api"
)

const signupJSON = `{
  "forms": [
    {
      "fields": [
        {"name": "email", "type": "email", "required": true, "storage": {"type": "user", "field": "email"}},
        {"name": "name", "storage": {"type": "mysql", "table": "leads", "column": "name"}},
        {"name": "color", "value": "blue", "storage": {"type": "mysql_json", "table": "leads", "column": "prefs", "json_path": "color"}}
      ]
    },
    {"redirect": "/thanks"}
  ],
  "storage": {
    "mysql": {
      "leads": {
        "primary_key": "lead_id",
        "fields": {"user_id": {"storage": "user", "field": "user_id"}}
      }
    }
  },
  "page": {"title": "Sign up"}
}`

func TestParseJSON_OriginalWireFormat(t *testing.T) {
	def, err := ParseJSON([]byte(signupJSON))
	require.NoError(t, err)

	require.Len(t, def.Steps, 2)
	step := def.Steps[0]
	require.Len(t, step.Fields, 3)

	require.Equal(t, api.UserAttribute{Attribute: "email"}, step.Fields[0].Storage)
	require.True(t, step.Fields[0].Required)
	require.Equal(t, api.Column{Table: "leads", Column: "name"}, step.Fields[1].Storage)
	require.Equal(t, api.JSONPath{Table: "leads", Column: "prefs", Path: "color"}, step.Fields[2].Storage)
	require.Equal(t, "blue", step.Fields[2].Value)

	require.Equal(t, "/thanks", def.Steps[1].Redirect)

	leads := def.Storage.Tables["leads"]
	require.Equal(t, "lead_id", leads.Key())
	require.Equal(t, api.UserAssociation{Attribute: "user_id"}, leads.Associations["user_id"])
	require.Equal(t, "Sign up", def.Page["title"])
}

func TestParseYAML_RowAssociationAndWeakTypes(t *testing.T) {
	doc := `
forms:
  - fields:
      - name: company
        storage: {type: sql, table: accounts, column: name}
      - name: seats
        value: 5
        required: 1
        storage: {type: sql, table: account_contacts, column: seats}
storage:
  sql:
    accounts: {}
    account_contacts:
      fields:
        account_id: {storage: sql, table: accounts}
`
	def, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	seats := def.Steps[0].Fields[1]
	require.Equal(t, "5", seats.Value)
	require.True(t, seats.Required)

	require.Equal(t, "id", def.Storage.Tables["accounts"].Key())
	require.Equal(t, api.RowAssociation{Table: "accounts"}, def.Storage.Tables["account_contacts"].Associations["account_id"])
	require.Equal(t, 1, def.Storage.AssociationCount())
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]string{
		"no forms":          `{"forms": []}`,
		"unnamed field":     `{"forms": [{"fields": [{"type": "text"}]}]}`,
		"duplicate field":   `{"forms": [{"fields": [{"name": "a"}, {"name": "a"}]}]}`,
		"unknown storage":   `{"forms": [{"fields": [{"name": "a", "storage": {"type": "s3"}}]}]}`,
		"column no table":   `{"forms": [{"fields": [{"name": "a", "storage": {"type": "sql", "column": "x"}}]}]}`,
		"json no path":      `{"forms": [{"fields": [{"name": "a", "storage": {"type": "sql_json", "table": "t", "column": "x"}}]}]}`,
		"unknown section":   `{"forms": [{}], "storage": {"nosql": {"t": {}}}}`,
		"bad association":   `{"forms": [{}], "storage": {"sql": {"t": {"fields": {"c": {"storage": "cookie"}}}}}}`,
		"table declared 2x": `{"forms": [{}], "storage": {"sql": {"t": {}}, "mysql": {"t": {}}}}`,
		"not json":          `{"forms": [`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(doc))
			if !errors.Is(err, api.ErrInvalidDefinition) {
				t.Fatalf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
}

func TestEncode_DecodesToSameDefinition(t *testing.T) {
	def, err := ParseJSON([]byte(signupJSON))
	require.NoError(t, err)

	data, err := Encode(def)
	require.NoError(t, err)

	again, err := ParseJSON(data)
	require.NoError(t, err)
	require.Equal(t, def, again)
}
