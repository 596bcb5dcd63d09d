package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Operator is a filter comparison operator as sent by query builders.
type Operator string

// Filter operators.
const (
	OpEquals         Operator = "Equals"
	OpContains       Operator = "Contains"
	OpGreaterOrEqual Operator = "Greater than or equal"
	OpLessOrEqual    Operator = "Less than or equal"
	OpGreaterThan    Operator = "Greater than"
	OpLessThan       Operator = "Less than"
	OpNotEqual       Operator = "Not equal to"
	OpExists         Operator = "Exists"
	OpNotExists      Operator = "Does not exist"
)

// NeedsValue reports whether the operator compares against a value.
func (o Operator) NeedsValue() bool {
	return o != OpExists && o != OpNotExists
}

// Connective links a filter criterion to the one after it.
type Connective string

// Logical connectives.
const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// Semantic field types declared in the schema catalog.
const (
	TypeNumber   = "number"
	TypeString   = "string"
	TypeText     = "text"
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeOption   = "option"
	TypeBoolean  = "boolean"
	TypeJSON     = "json"
)

// IsTemporal reports whether a semantic type is date or datetime.
func IsTemporal(fieldType string) bool {
	return fieldType == TypeDate || fieldType == TypeDateTime
}

// SelectionNode is one model in a nested selection tree. Children keep
// their declaration order, which decides join and column order.
type SelectionNode struct {
	Model    string           `json:"model"`
	Label    string           `json:"label,omitempty"`
	Fields   []string         `json:"fields"`
	Children []*SelectionNode `json:"children,omitempty"`
}

// Alias returns the SQL alias of the node.
func (n *SelectionNode) Alias() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Model
}

// UnmarshalJSON decodes a node whose children are given either as an object
// keyed by label (order preserved) or as an array of nodes.
func (n *SelectionNode) UnmarshalJSON(data []byte) error {
	var aux struct {
		Model    string          `json:"model"`
		Label    string          `json:"label"`
		Fields   []string        `json:"fields"`
		Children json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	children, err := decodeChildren(aux.Children)
	if err != nil {
		return err
	}
	n.Model = aux.Model
	n.Label = aux.Label
	n.Fields = aux.Fields
	n.Children = children
	return nil
}

func decodeChildren(raw json.RawMessage) ([]*SelectionNode, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []*SelectionNode
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("children: expected object or array")
	}
	var children []*SelectionNode
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		child := &SelectionNode{}
		if err := dec.Decode(child); err != nil {
			return nil, fmt.Errorf("children[%s]: %w", key, err)
		}
		if child.Label == "" {
			child.Label = key
		}
		if child.Model == "" {
			child.Model = child.Label
		}
		children = append(children, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return children, nil
}

// FilterCriterion is one comparison term of a WHERE clause. Connective
// governs how the next criterion attaches to this one.
type FilterCriterion struct {
	Table      string     `json:"table"`
	Field      string     `json:"field"`
	Type       string     `json:"type"`
	Operator   Operator   `json:"operator"`
	Value      string     `json:"value,omitempty"`
	HasValue   bool       `json:"-"`
	Connective Connective `json:"where_operator,omitempty"`
	// Normalize marks a datetime value that must be shifted by the source
	// timezone offset before comparison. Set when the criterion arrived with
	// exactly six attributes.
	Normalize bool `json:"-"`
}

// UnmarshalJSON accepts string, numeric and boolean values and records the
// attribute count used by datetime normalization.
func (c *FilterCriterion) UnmarshalJSON(data []byte) error {
	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil {
		return err
	}
	str := func(key string) (string, error) {
		raw, ok := attrs[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return "", nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("filter %s: %w", key, err)
		}
		return s, nil
	}

	var out FilterCriterion
	var err error
	if out.Table, err = str("table"); err != nil {
		return err
	}
	if out.Field, err = str("field"); err != nil {
		return err
	}
	if out.Type, err = str("type"); err != nil {
		return err
	}
	op, err := str("operator")
	if err != nil {
		return err
	}
	out.Operator = Operator(op)

	conn, err := str("where_operator")
	if err != nil {
		return err
	}
	if conn == "" {
		if conn, err = str("connective"); err != nil {
			return err
		}
	}
	out.Connective = Connective(strings.ToUpper(strings.TrimSpace(conn)))

	if raw, ok := attrs["value"]; ok {
		raw = bytes.TrimSpace(raw)
		switch {
		case bytes.Equal(raw, []byte("null")):
		case len(raw) > 0 && raw[0] == '"':
			if err := json.Unmarshal(raw, &out.Value); err != nil {
				return fmt.Errorf("filter value: %w", err)
			}
			out.HasValue = true
		default:
			out.Value = string(raw)
			out.HasValue = true
		}
	}
	out.Normalize = out.Type == TypeDateTime && len(attrs) == 6

	*c = out
	return nil
}

// SummarizeColumn is a GROUP BY key in aggregation mode.
type SummarizeColumn struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

// Header returns the result column name of the group-by key.
func (s SummarizeColumn) Header() string {
	return s.Table + "_" + s.Field
}

// ObjectQuery is the compiler input for one dynamic query.
type ObjectQuery struct {
	Model        string
	Selection    *SelectionNode
	Filters      []FilterCriterion
	OrderBy      string
	Limit        int
	RenameFields bool
	Summarize    []SummarizeColumn
	Rollup       bool
	DryRun       bool
}

// CompiledQuery is the immutable output of the query assembler. SQL carries
// `?` placeholders bound positionally to Args.
type CompiledQuery struct {
	SQL     string
	Args    []any
	Headers []string
	DryRun  bool
}

// Render returns the SQL text with every placeholder replaced by a quoted
// literal. It is meant for display, never for execution.
func (q *CompiledQuery) Render() string {
	if len(q.Args) == 0 {
		return q.SQL
	}
	var b strings.Builder
	b.Grow(len(q.SQL) + 16*len(q.Args))
	next := 0
	for i := 0; i < len(q.SQL); i++ {
		ch := q.SQL[i]
		if ch == '?' && next < len(q.Args) {
			b.WriteString(QuoteLiteral(q.Args[next]))
			next++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// QuoteLiteral renders a value as a single-quoted SQL string literal.
func QuoteLiteral(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
