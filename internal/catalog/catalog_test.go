package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynquery/internal/domain"
)

const sampleYAML = `
hidden_fields: [id, password]
embeddable_fields: [branch_id]
models:
  loan:
    fields:
      row_num: {type: number}
      amount: number
      status:
        type: option
        options:
          active: Active
          closed: Closed
      client_id: number
      branch_id: number
  client:
    name: string
    created_at: datetime
`

func TestParseYAMLKeepsFieldOrder(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"client", "loan"}, c.Models())

	loan, err := c.Model("loan")
	require.NoError(t, err)
	names := make([]string, 0, len(loan.Fields))
	for _, f := range loan.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"row_num", "amount", "status", "client_id", "branch_id"}, names)

	status, ok := loan.Field("status")
	require.True(t, ok)
	assert.Equal(t, domain.TypeOption, status.Type)
	assert.Equal(t, []Option{{Value: "active", Display: "Active"}, {Value: "closed", Display: "Closed"}}, status.Options)

	typ, err := c.FieldType("client", "created_at")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeDateTime, typ)

	assert.True(t, c.Hidden("password"))
	assert.False(t, c.Hidden("row_num"))
	assert.True(t, c.Embeddable("branch_id"))
	assert.False(t, c.Embeddable("client_id"))
}

func TestParseBareJSONDatamodel(t *testing.T) {
	raw := `{"loan": {"fields": {"amount": {"type": "number"}, "row_num": {"type": "number"}}}}`
	c, err := Parse([]byte(raw))
	require.NoError(t, err)

	typ, err := c.FieldType("loan", "amount")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeNumber, typ)
	assert.True(t, c.Hidden("row_num"))
	assert.True(t, c.Embeddable("worker_id"))
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not a mapping", `[1, 2]`},
		{"no models", `models: {}`},
		{"bad model name", `"loan; drop": {amount: number}`},
		{"bad field name", `loan: {"amount desc": number}`},
		{"missing type", `loan: {amount: {options: {a: b}}}`},
		{"syntax", `loan: [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			var schemaErr *domain.SchemaError
			assert.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %T", err)
		})
	}
}

func TestUnknownModelAndField(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	_, err = c.Model("nope")
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)

	_, err = c.FieldType("loan", "nope")
	require.ErrorAs(t, err, &schemaErr)
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("loan_product_id"))
	assert.True(t, IsIdentifier("_x1"))
	assert.False(t, IsIdentifier("1abc"))
	assert.False(t, IsIdentifier("a.b"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("x'--"))
}

func TestHolderReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loan: {amount: number}\n"), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHolder(path, logger)
	require.NoError(t, err)
	_, err = h.Current().Model("client")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("loan: {amount: number}\nclient: {name: string}\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	_, err = h.Current().Model("client")
	require.NoError(t, err)

	// A broken file keeps the previous catalog.
	require.NoError(t, os.WriteFile(path, []byte("loan: ["), 0o600))
	require.Error(t, h.Reload(context.Background()))
	_, err = h.Current().Model("client")
	require.NoError(t, err)
}

func TestReloaderRejectsInvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	r := NewReloader(NewStaticHolder(c), "not a cron spec", logger)
	require.Error(t, r.Start(context.Background()))

	idle := NewReloader(NewStaticHolder(c), "", logger)
	require.NoError(t, idle.Start(context.Background()))
	idle.Stop()

	ok := NewReloader(NewStaticHolder(c), "@every 1h", logger)
	require.NoError(t, ok.Start(context.Background()))
	ok.Stop()
}
