package tenant

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		in     any
		dbType string
		want   any
	}{
		{"time", ts, "DATETIME", "2024-01-02 03:04:05"},
		{"date", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "DATE", "2024-01-02 00:00:00"},
		{"decimal bytes", []byte("1234.50"), "DECIMAL", json.Number("1234.50")},
		{"int bytes", []byte("42"), "BIGINT", int64(42)},
		{"unsigned bytes", []byte("18446744073709551615"), "UNSIGNED BIGINT", uint64(18446744073709551615)},
		{"double bytes", []byte("1.5"), "DOUBLE", 1.5},
		{"datetime bytes", []byte("2024-01-02 03:04:05.000"), "DATETIME", "2024-01-02 03:04:05"},
		{"text bytes", []byte("hello"), "VARCHAR", "hello"},
		{"int passthrough", int64(7), "INTEGER", int64(7)},
		{"string passthrough", "x", "TEXT", "x"},
		{"null passthrough", nil, "VARCHAR", nil},
		{"bool passthrough", true, "BOOLEAN", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeValue(tt.in, tt.dbType))
		})
	}
}
