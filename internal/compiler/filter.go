package compiler

import (
	"strings"
	"time"

	"dynquery/internal/catalog"
	"dynquery/internal/domain"
)

// DefaultSourceOffset is the shift applied to normalized datetime filter
// values.
const DefaultSourceOffset = 2 * time.Hour

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// FilterCompiler emits WHERE clauses.
type FilterCompiler struct {
	// SourceOffset is added to datetime values of normalized criteria.
	SourceOffset time.Duration
}

// CompileFilter compiles criteria with the default source offset.
func CompileFilter(criteria []domain.FilterCriterion) (string, []any, error) {
	return FilterCompiler{SourceOffset: DefaultSourceOffset}.Compile(criteria)
}

// Compile returns a `WHERE ...` clause with `?` placeholders and the values
// bound to them. Fewer than two criteria yield an empty clause.
//
// Each criterion's connective links it to the next one. A run of criteria
// joined by OR is wrapped in parentheses when it starts the clause or
// follows an AND. Only that single level of grouping is produced.
func (fc FilterCompiler) Compile(criteria []domain.FilterCriterion) (string, []any, error) {
	n := len(criteria)
	if n < 2 {
		return "", nil, nil
	}

	conns := make([]domain.Connective, n)
	for i, c := range criteria {
		conn, err := connective(c)
		if err != nil {
			return "", nil, err
		}
		conns[i] = conn
	}

	var b strings.Builder
	var args []any
	b.WriteString("WHERE ")
	for i, c := range criteria {
		last := i == n-1
		if i == 0 {
			if conns[0] == domain.Or {
				b.WriteByte('(')
			}
		} else {
			prev := conns[i-1]
			b.WriteString(" " + string(prev) + " ")
			if !last && prev == domain.And && conns[i] == domain.Or {
				b.WriteByte('(')
			}
		}

		cmp, cmpArgs, err := fc.comparison(c)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(cmp)
		args = append(args, cmpArgs...)

		if i > 0 {
			prev := conns[i-1]
			if prev == domain.Or && (last || conns[i] == domain.And) {
				b.WriteByte(')')
			}
		}
	}
	return b.String(), args, nil
}

func connective(c domain.FilterCriterion) (domain.Connective, error) {
	switch c.Connective {
	case "", domain.And:
		return domain.And, nil
	case domain.Or:
		return domain.Or, nil
	default:
		return "", domain.ErrFilter("unknown connective %q on %s.%s", c.Connective, c.Table, c.Field)
	}
}

func (fc FilterCompiler) comparison(c domain.FilterCriterion) (string, []any, error) {
	if !catalog.IsIdentifier(c.Table) || !catalog.IsIdentifier(c.Field) {
		return "", nil, domain.ErrFilter("invalid filter column %q.%q", c.Table, c.Field)
	}
	col := c.Table + "." + c.Field

	switch c.Operator {
	case domain.OpExists:
		return col + " IS NOT NULL", nil, nil
	case domain.OpNotExists:
		return col + " IS NULL", nil, nil
	case domain.OpEquals, domain.OpContains, domain.OpGreaterOrEqual, domain.OpLessOrEqual,
		domain.OpGreaterThan, domain.OpLessThan, domain.OpNotEqual:
	default:
		return "", nil, domain.ErrFilter("unknown operator %q on %s", c.Operator, col)
	}

	if !c.HasValue {
		return "", nil, domain.ErrFilter("operator %q on %s requires a value", c.Operator, col)
	}
	value := c.Value
	if c.Type == domain.TypeDateTime && c.Normalize {
		shifted, err := fc.normalize(value)
		if err != nil {
			return "", nil, domain.ErrFilter("invalid datetime %q on %s: %v", value, col, err)
		}
		value = shifted
	}
	temporal := domain.IsTemporal(c.Type)

	switch c.Operator {
	case domain.OpEquals:
		if temporal {
			end, err := addDays(value, 2)
			if err != nil {
				return "", nil, domain.ErrFilter("invalid date %q on %s: %v", value, col, err)
			}
			return col + " >= ? AND " + col + " < ?", []any{value, end}, nil
		}
		return col + " = ?", []any{value}, nil
	case domain.OpContains:
		return col + " LIKE ?", []any{"%" + value + "%"}, nil
	case domain.OpGreaterOrEqual:
		return col + " >= ?", []any{value}, nil
	case domain.OpLessOrEqual:
		if temporal {
			end, err := addDays(value, 1)
			if err != nil {
				return "", nil, domain.ErrFilter("invalid date %q on %s: %v", value, col, err)
			}
			return col + " <= ?", []any{end}, nil
		}
		return col + " <= ?", []any{value}, nil
	case domain.OpGreaterThan:
		return col + " > ?", []any{value}, nil
	case domain.OpLessThan:
		return col + " < ?", []any{value}, nil
	default: // OpNotEqual
		return col + " != ?", []any{value}, nil
	}
}

func (fc FilterCompiler) normalize(value string) (string, error) {
	if len(value) < len(datetimeLayout) {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return "", err
		}
		return t.Add(fc.SourceOffset).Format(datetimeLayout), nil
	}
	t, err := time.Parse(datetimeLayout, strings.Replace(value[:len(datetimeLayout)], "T", " ", 1))
	if err != nil {
		return "", err
	}
	return t.Add(fc.SourceOffset).Format(datetimeLayout), nil
}

// addDays truncates value to its date part and moves it forward.
func addDays(value string, days int) (string, error) {
	if len(value) < len(dateLayout) {
		return "", domain.ErrFilter("date too short")
	}
	t, err := time.Parse(dateLayout, value[:len(dateLayout)])
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(dateLayout), nil
}
