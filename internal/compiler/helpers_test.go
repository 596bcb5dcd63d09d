package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"dynquery/internal/catalog"
	"dynquery/internal/domain"
)

const testCatalog = `
models:
  loan:
    row_num: number
    id: number
    amount: number
    status: option
    created_at: datetime
    due_date: date
    client_id: number
    branch_id: number
  client:
    id: number
    name: string
    employer_id: number
  company:
    id: number
    name: string
  branch:
    id: number
    name: string
    region: string
  sales:
    row_num: number
    region: string
    amount: number
    name: string
`

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func decodeSelection(t *testing.T, raw string) *domain.SelectionNode {
	t.Helper()
	var n domain.SelectionNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	return &n
}

func crit(table, field, typ string, op domain.Operator, value string, conn domain.Connective) domain.FilterCriterion {
	return domain.FilterCriterion{
		Table:      table,
		Field:      field,
		Type:       typ,
		Operator:   op,
		Value:      value,
		HasValue:   op.NeedsValue(),
		Connective: conn,
	}
}
