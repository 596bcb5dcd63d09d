package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynquery/internal/domain"
)

func TestCompileSelection(t *testing.T) {
	t.Parallel()

	root := decodeSelection(t, `{
		"model": "loan",
		"fields": ["amount"],
		"children": {
			"client": {"model": "client", "fields": ["name", "id"], "children": {
				"employer": {"model": "company", "fields": ["name"]}
			}},
			"branch": {"model": "branch", "fields": ["name"]}
		}
	}`)

	frag, err := CompileSelection(root)
	require.NoError(t, err)

	assert.Equal(t,
		" LEFT JOIN client AS client ON loan.client_id = client.id"+
			" LEFT JOIN company AS employer ON client.employer_id = employer.id"+
			" LEFT JOIN branch AS branch ON loan.branch_id = branch.id",
		frag.Joins)
	assert.Equal(t, []string{
		"client.name AS client_name",
		"client.id AS client_id",
		"employer.name AS employer_name",
		"branch.name AS branch_name",
	}, frag.Columns)
	assert.Equal(t, []string{"client_name", "client_id", "employer_name", "branch_name"}, frag.Headers)
}

func TestCompileSelectionJoinAndHeaderCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		joins   int
		headers int
	}{
		{"no children", `{"model":"loan","fields":["amount"]}`, 0, 0},
		{"one level", `{"model":"loan","fields":["amount"],"children":{"client":{"fields":["name","id"]}}}`, 1, 2},
		{"two levels", `{"model":"loan","fields":["amount"],"children":{"client":{"fields":["name"],"children":{"employer":{"model":"company","fields":["name","id"]}}}}}`, 2, 3},
		{"child without fields", `{"model":"loan","fields":["amount"],"children":{"client":{"fields":[]}}}`, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			frag, err := CompileSelection(decodeSelection(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.joins, strings.Count(frag.Joins, "LEFT JOIN"))
			assert.Len(t, frag.Headers, tt.headers)
			assert.Len(t, frag.Columns, tt.headers)
			if tt.joins == 0 {
				assert.Empty(t, frag.Joins)
			}
		})
	}
}

func TestCompileSelectionRejectsInvalidTrees(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"duplicate sibling label", `{"model":"loan","fields":["id"],"children":[{"model":"client","label":"c","fields":["name"]},{"model":"branch","label":"c","fields":["name"]}]}`},
		{"duplicate nested label", `{"model":"loan","fields":["id"],"children":{"client":{"fields":["name"],"children":{"loan":{"fields":["id"]}}}}}`},
		{"invalid field", `{"model":"loan","fields":["amount; DROP TABLE loan"]}`},
		{"invalid label", `{"model":"loan","fields":["id"],"children":{"a b":{"model":"client","fields":["name"]}}}`},
		{"missing model", `{"fields":["id"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := CompileSelection(decodeSelection(t, tt.raw))
			var compErr *domain.CompilationError
			require.ErrorAs(t, err, &compErr)
		})
	}

	_, err := CompileSelection(nil)
	var compErr *domain.CompilationError
	require.ErrorAs(t, err, &compErr)
}
