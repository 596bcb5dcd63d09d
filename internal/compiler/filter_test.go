package compiler

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynquery/internal/domain"
)

func TestCompileFilterFewerThanTwoCriteria(t *testing.T) {
	t.Parallel()

	clause, args, err := CompileFilter(nil)
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	single := []domain.FilterCriterion{crit("loan", "status", "option", domain.OpEquals, "active", domain.And)}
	clause, args, err = CompileFilter(single)
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestCompileFilterGrouping(t *testing.T) {
	t.Parallel()

	a := func(conn domain.Connective) domain.FilterCriterion {
		return crit("t", "a", "string", domain.OpEquals, "1", conn)
	}
	b := func(conn domain.Connective) domain.FilterCriterion {
		return crit("t", "b", "string", domain.OpEquals, "2", conn)
	}
	c := func(conn domain.Connective) domain.FilterCriterion {
		return crit("t", "c", "string", domain.OpEquals, "3", conn)
	}
	d := func(conn domain.Connective) domain.FilterCriterion {
		return crit("t", "d", "string", domain.OpEquals, "4", conn)
	}

	tests := []struct {
		name     string
		criteria []domain.FilterCriterion
		want     string
	}{
		{
			name:     "and then or groups the tail",
			criteria: []domain.FilterCriterion{a(domain.And), b(domain.Or), c(domain.And)},
			want:     "WHERE t.a = '1' AND (t.b = '2' OR t.c = '3')",
		},
		{
			name:     "leading or",
			criteria: []domain.FilterCriterion{a(domain.Or), b(domain.And)},
			want:     "WHERE (t.a = '1' OR t.b = '2')",
		},
		{
			name:     "all and",
			criteria: []domain.FilterCriterion{a(domain.And), b(domain.And), c(domain.And)},
			want:     "WHERE t.a = '1' AND t.b = '2' AND t.c = '3'",
		},
		{
			name:     "default connective is and",
			criteria: []domain.FilterCriterion{a(""), b("")},
			want:     "WHERE t.a = '1' AND t.b = '2'",
		},
		{
			name:     "or run closed before and",
			criteria: []domain.FilterCriterion{a(domain.Or), b(domain.And), c(domain.And)},
			want:     "WHERE (t.a = '1' OR t.b = '2') AND t.c = '3'",
		},
		{
			name:     "all or",
			criteria: []domain.FilterCriterion{a(domain.Or), b(domain.Or), c(domain.And)},
			want:     "WHERE (t.a = '1' OR t.b = '2' OR t.c = '3')",
		},
		{
			name:     "two alternations",
			criteria: []domain.FilterCriterion{a(domain.Or), b(domain.And), c(domain.Or), d(domain.And)},
			want:     "WHERE (t.a = '1' OR t.b = '2') AND (t.c = '3' OR t.d = '4')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clause, args, err := CompileFilter(tt.criteria)
			require.NoError(t, err)
			q := domain.CompiledQuery{SQL: clause, Args: args}
			assert.Equal(t, tt.want, q.Render())
		})
	}
}

func TestCompileFilterOperators(t *testing.T) {
	t.Parallel()

	anchor := crit("loan", "id", "number", domain.OpGreaterThan, "0", domain.And)

	tests := []struct {
		name string
		c    domain.FilterCriterion
		sql  string
		args []any
	}{
		{
			name: "equals on date pads two days",
			c:    crit("loan", "due_date", "date", domain.OpEquals, "2023-05-01", ""),
			sql:  "loan.due_date >= ? AND loan.due_date < ?",
			args: []any{"2023-05-01", "2023-05-03"},
		},
		{
			name: "equals on datetime keeps full value",
			c:    crit("loan", "created_at", "datetime", domain.OpEquals, "2023-12-31 08:00:00", ""),
			sql:  "loan.created_at >= ? AND loan.created_at < ?",
			args: []any{"2023-12-31 08:00:00", "2024-01-02"},
		},
		{
			name: "equals on string",
			c:    crit("loan", "status", "option", domain.OpEquals, "active", ""),
			sql:  "loan.status = ?",
			args: []any{"active"},
		},
		{
			name: "contains",
			c:    crit("client", "name", "string", domain.OpContains, "smi", ""),
			sql:  "client.name LIKE ?",
			args: []any{"%smi%"},
		},
		{
			name: "greater than or equal",
			c:    crit("loan", "amount", "number", domain.OpGreaterOrEqual, "100", ""),
			sql:  "loan.amount >= ?",
			args: []any{"100"},
		},
		{
			name: "less than or equal on date adds a day",
			c:    crit("loan", "due_date", "date", domain.OpLessOrEqual, "2024-02-28", ""),
			sql:  "loan.due_date <= ?",
			args: []any{"2024-02-29"},
		},
		{
			name: "less than or equal on number",
			c:    crit("loan", "amount", "number", domain.OpLessOrEqual, "100", ""),
			sql:  "loan.amount <= ?",
			args: []any{"100"},
		},
		{
			name: "greater than",
			c:    crit("loan", "amount", "number", domain.OpGreaterThan, "5", ""),
			sql:  "loan.amount > ?",
			args: []any{"5"},
		},
		{
			name: "less than",
			c:    crit("loan", "amount", "number", domain.OpLessThan, "5", ""),
			sql:  "loan.amount < ?",
			args: []any{"5"},
		},
		{
			name: "not equal",
			c:    crit("loan", "status", "option", domain.OpNotEqual, "closed", ""),
			sql:  "loan.status != ?",
			args: []any{"closed"},
		},
		{
			name: "exists",
			c:    crit("loan", "due_date", "date", domain.OpExists, "", ""),
			sql:  "loan.due_date IS NOT NULL",
		},
		{
			name: "does not exist",
			c:    crit("loan", "due_date", "date", domain.OpNotExists, "", ""),
			sql:  "loan.due_date IS NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clause, args, err := CompileFilter([]domain.FilterCriterion{anchor, tt.c})
			require.NoError(t, err)
			assert.Equal(t, "WHERE loan.id > ? AND "+tt.sql, clause)
			assert.Equal(t, append([]any{"0"}, tt.args...), args)
		})
	}
}

func TestCompileFilterDateEqualsRendering(t *testing.T) {
	t.Parallel()

	criteria := []domain.FilterCriterion{
		crit("loan", "due_date", "date", domain.OpEquals, "2023-05-01", domain.And),
		crit("loan", "status", "option", domain.OpEquals, "active", ""),
	}
	clause, args, err := CompileFilter(criteria)
	require.NoError(t, err)
	q := domain.CompiledQuery{SQL: clause, Args: args}
	assert.Equal(t, "WHERE loan.due_date >= '2023-05-01' AND loan.due_date < '2023-05-03' AND loan.status = 'active'", q.Render())
}

func TestCompileFilterNormalizesSixAttributeDatetime(t *testing.T) {
	t.Parallel()

	var normalized domain.FilterCriterion
	require.NoError(t, json.Unmarshal([]byte(
		`{"table":"loan","field":"created_at","type":"datetime","operator":"Greater than","value":"2024-01-01T23:30:00.000Z","where_operator":"AND"}`,
	), &normalized))
	require.True(t, normalized.Normalize)

	anchor := crit("loan", "id", "number", domain.OpGreaterThan, "0", domain.And)

	_, args, err := CompileFilter([]domain.FilterCriterion{anchor, normalized})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 01:30:00", args[1])

	_, args, err = FilterCompiler{SourceOffset: 0}.Compile([]domain.FilterCriterion{anchor, normalized})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 23:30:00", args[1])

	_, args, err = FilterCompiler{SourceOffset: -time.Hour}.Compile([]domain.FilterCriterion{anchor, normalized})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 22:30:00", args[1])

	plain := normalized
	plain.Normalize = false
	_, args, err = CompileFilter([]domain.FilterCriterion{anchor, plain})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T23:30:00.000Z", args[1])
}

func TestCompileFilterErrors(t *testing.T) {
	t.Parallel()

	anchor := crit("loan", "id", "number", domain.OpGreaterThan, "0", domain.And)
	missingValue := crit("loan", "amount", "number", domain.OpEquals, "", "")
	missingValue.HasValue = false

	tests := []struct {
		name string
		c    domain.FilterCriterion
	}{
		{"missing value", missingValue},
		{"unknown operator", crit("loan", "amount", "number", "Between", "1", "")},
		{"unknown connective", crit("loan", "amount", "number", domain.OpEquals, "1", "XOR")},
		{"invalid column", crit("loan", "amount) OR (1=1", "number", domain.OpEquals, "1", "")},
		{"invalid date", crit("loan", "due_date", "date", domain.OpEquals, "yesterday", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := CompileFilter([]domain.FilterCriterion{anchor, tt.c})
			var filterErr *domain.FilterError
			require.ErrorAs(t, err, &filterErr)
		})
	}
}
