// Package export turns result sets into CSV files, stores them and tells
// the requesting user where to find them.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"dynquery/internal/domain"
)

// EncodeCSV renders headers and rows as CSV. Every non-empty value is
// quoted with embedded quotes doubled; NULL and empty strings become empty
// unquoted fields. The output has no trailing newline.
func EncodeCSV(headers []string, rows []domain.Row) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(headers, ","))

	var index map[string]int
	for _, row := range rows {
		if index == nil {
			index = make(map[string]int, len(row.Columns))
			for i, c := range row.Columns {
				index[c] = i
			}
		}
		buf.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				buf.WriteByte(',')
			}
			j, ok := index[h]
			if !ok || j >= len(row.Values) {
				continue
			}
			s := formatValue(row.Values[j])
			if s == "" {
				continue
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(s, `"`, `""`))
			buf.WriteByte('"')
		}
	}
	return buf.Bytes()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
