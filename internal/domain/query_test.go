package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionNodeUnmarshalKeepsChildOrder(t *testing.T) {
	raw := `{
		"model": "loan",
		"fields": ["row_num", "amount"],
		"children": {
			"client": {"fields": ["name"], "children": {"employer": {"model": "company", "fields": ["name"]}}},
			"branch": {"model": "branch", "fields": ["name"]},
			"agent": {"model": "worker", "fields": ["name"]}
		}
	}`

	var node SelectionNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))

	assert.Equal(t, "loan", node.Alias())
	require.Len(t, node.Children, 3)
	assert.Equal(t, "client", node.Children[0].Label)
	assert.Equal(t, "client", node.Children[0].Model)
	assert.Equal(t, "branch", node.Children[1].Label)
	assert.Equal(t, "agent", node.Children[2].Label)
	assert.Equal(t, "worker", node.Children[2].Model)

	require.Len(t, node.Children[0].Children, 1)
	assert.Equal(t, "employer", node.Children[0].Children[0].Label)
	assert.Equal(t, "company", node.Children[0].Children[0].Model)
}

func TestSelectionNodeUnmarshalArrayChildren(t *testing.T) {
	raw := `{"model":"loan","fields":["id"],"children":[{"model":"client","label":"c","fields":["name"]}]}`

	var node SelectionNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))
	require.Len(t, node.Children, 1)
	assert.Equal(t, "c", node.Children[0].Alias())
}

func TestSelectionNodeUnmarshalRejectsScalarChildren(t *testing.T) {
	var node SelectionNode
	err := json.Unmarshal([]byte(`{"model":"loan","children":"client"}`), &node)
	require.Error(t, err)
}

func TestFilterCriterionUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		value     string
		hasValue  bool
		conn      Connective
		normalize bool
	}{
		{
			name:     "string value",
			raw:      `{"table":"loan","field":"status","type":"option","operator":"Equals","value":"active","where_operator":"and"}`,
			value:    "active",
			hasValue: true,
			conn:     And,
		},
		{
			name:     "numeric value",
			raw:      `{"table":"loan","field":"amount","type":"number","operator":"Greater than","value":1500.5}`,
			value:    "1500.5",
			hasValue: true,
		},
		{
			name: "null value",
			raw:  `{"table":"loan","field":"closed_at","type":"date","operator":"Exists","value":null,"connective":"OR"}`,
			conn: Or,
		},
		{
			name:      "datetime with six attributes",
			raw:       `{"table":"loan","field":"created_at","type":"datetime","operator":"Equals","value":"2024-01-01T10:00:00","where_operator":"AND"}`,
			value:     "2024-01-01T10:00:00",
			hasValue:  true,
			conn:      And,
			normalize: true,
		},
		{
			name:     "datetime with five attributes",
			raw:      `{"table":"loan","field":"created_at","type":"datetime","operator":"Equals","value":"2024-01-01"}`,
			value:    "2024-01-01",
			hasValue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c FilterCriterion
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.hasValue, c.HasValue)
			assert.Equal(t, tt.conn, c.Connective)
			assert.Equal(t, tt.normalize, c.Normalize)
		})
	}
}

func TestCompiledQueryRender(t *testing.T) {
	q := CompiledQuery{
		SQL:  "SELECT * FROM loan WHERE loan.name = ? AND loan.note LIKE ?",
		Args: []any{"O'Brien", "%x%"},
	}
	assert.Equal(t, "SELECT * FROM loan WHERE loan.name = 'O''Brien' AND loan.note LIKE '%x%'", q.Render())

	plain := CompiledQuery{SQL: "SELECT 1"}
	assert.Equal(t, "SELECT 1", plain.Render())
}

func TestRowMarshalJSONKeepsColumnOrder(t *testing.T) {
	row := Row{
		Columns: []string{"zeta", "alpha", "mid"},
		Values:  []any{1, "a", nil},
	}
	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":null}`, string(out))

	v, ok := row.Get("alpha")
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}
