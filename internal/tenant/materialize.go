package tenant

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dynquery/internal/domain"
)

// Materialize reads every row of rows into memory. Temporal values become
// `YYYY-MM-DD HH:MM:SS` strings and raw bytes are decoded according to the
// column's database type. NULLs stay nil, so rollup rows pass through.
func Materialize(rows *sql.Rows) (*domain.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	dbTypes := make([]string, len(types))
	for i, ct := range types {
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	rs := &domain.ResultSet{Headers: cols, Rows: []domain.Row{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range values {
			values[i] = NormalizeValue(v, dbTypes[i])
		}
		rs.Rows = append(rs.Rows, domain.Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// NormalizeValue converts one driver value into its transport form.
func NormalizeValue(v interface{}, dbType string) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(domain.CanonicalTimeLayout)
	case []byte:
		return decodeBytes(string(t), dbType)
	default:
		return v
	}
}

func decodeBytes(s, dbType string) interface{} {
	switch {
	case dbType == "DECIMAL" || dbType == "NEWDECIMAL" || dbType == "NUMERIC":
		return json.Number(s)
	case strings.HasSuffix(dbType, "INT") || dbType == "INTEGER":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case dbType == "FLOAT" || dbType == "DOUBLE" || dbType == "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case dbType == "DATETIME" || dbType == "TIMESTAMP":
		if t, err := time.Parse("2006-01-02 15:04:05", s[:min(len(s), 19)]); err == nil {
			return t.Format(domain.CanonicalTimeLayout)
		}
	}
	return s
}
