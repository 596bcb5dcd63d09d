// Package catalog loads and holds the runtime schema description every query
// is compiled against.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"dynquery/internal/domain"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether s is safe to splice into SQL as a table,
// alias or column name.
func IsIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// DefaultHiddenFields are never exposed through field introspection.
var DefaultHiddenFields = []string{
	"row_num", "updated_at", "password", "field_ver", "display",
	"terms_acceptance", "face_photo", "id", "webhook_trigger",
}

// DefaultEmbeddableFields are the foreign keys exposed through field
// introspection. Other `*_id` fields are hidden.
var DefaultEmbeddableFields = []string{
	"agent_id", "agent_commission_rule_id", "area_id", "branch_id",
	"broadcast_id", "cashbox_category_id", "category_id", "company_id",
	"compuscan_id", "document_type_id", "employer_id", "loan_insurance_id",
	"loan_product_id", "operator_id", "payout_method_id",
	"product_addon_type_id", "purpose_id", "repayment_method_id", "role_id",
	"transaction_category_id", "worker_id",
}

// Option is one enumerated value of an option field.
type Option struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

// Field describes one column of a model.
type Field struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Options []Option `json:"options,omitempty"`
}

// Model describes one table. Fields keep declaration order.
type Model struct {
	Name   string
	Fields []Field
	index  map[string]int
}

// Field returns the named field.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// Catalog is an immutable set of models. Safe for concurrent use.
type Catalog struct {
	models     map[string]*Model
	hidden     map[string]bool
	embeddable map[string]bool
}

// Model returns the named model or a SchemaError.
func (c *Catalog) Model(name string) (*Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, domain.ErrSchema("unknown model %q", name)
	}
	return m, nil
}

// FieldType returns the declared semantic type of model.field.
func (c *Catalog) FieldType(model, field string) (string, error) {
	m, err := c.Model(model)
	if err != nil {
		return "", err
	}
	f, ok := m.Field(field)
	if !ok {
		return "", domain.ErrSchema("unknown field %q on model %q", field, model)
	}
	return f.Type, nil
}

// Models returns all model names sorted.
func (c *Catalog) Models() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hidden reports whether a field is excluded from introspection.
func (c *Catalog) Hidden(field string) bool { return c.hidden[field] }

// Embeddable reports whether a `*_id` field may be exposed.
func (c *Catalog) Embeddable(field string) bool { return c.embeddable[field] }

// LoadFile reads and parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document. YAML and JSON are both accepted.
//
// The document is either a mapping with a `models` key (plus optional
// `hidden_fields` and `embeddable_fields` lists) or a bare model mapping.
// Each model maps to `{fields: {...}}` or directly to its fields. A field is
// either a type name or `{type, options}`.
func Parse(data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.ErrSchema("invalid catalog document: %v", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, domain.ErrSchema("catalog must be a mapping")
	}

	c := &Catalog{
		models:     make(map[string]*Model),
		hidden:     toSet(DefaultHiddenFields),
		embeddable: toSet(DefaultEmbeddableFields),
	}

	modelsNode := root
	if v := lookup(root, "models"); v != nil {
		modelsNode = v
		if hv := lookup(root, "hidden_fields"); hv != nil {
			var list []string
			if err := hv.Decode(&list); err != nil {
				return nil, domain.ErrSchema("hidden_fields (line %d): %v", hv.Line, err)
			}
			c.hidden = toSet(list)
		}
		if ev := lookup(root, "embeddable_fields"); ev != nil {
			var list []string
			if err := ev.Decode(&list); err != nil {
				return nil, domain.ErrSchema("embeddable_fields (line %d): %v", ev.Line, err)
			}
			c.embeddable = toSet(list)
		}
	}
	if modelsNode.Kind != yaml.MappingNode {
		return nil, domain.ErrSchema("models must be a mapping (line %d)", modelsNode.Line)
	}

	for i := 0; i+1 < len(modelsNode.Content); i += 2 {
		name := modelsNode.Content[i].Value
		m, err := parseModel(name, modelsNode.Content[i+1])
		if err != nil {
			return nil, err
		}
		if _, dup := c.models[name]; dup {
			return nil, domain.ErrSchema("duplicate model %q", name)
		}
		c.models[name] = m
	}
	if len(c.models) == 0 {
		return nil, domain.ErrSchema("catalog declares no models")
	}
	return c, nil
}

func parseModel(name string, node *yaml.Node) (*Model, error) {
	if !IsIdentifier(name) {
		return nil, domain.ErrSchema("invalid model name %q", name)
	}
	if node.Kind != yaml.MappingNode {
		return nil, domain.ErrSchema("model %q must be a mapping (line %d)", name, node.Line)
	}
	fieldsNode := node
	if v := lookup(node, "fields"); v != nil && v.Kind == yaml.MappingNode {
		fieldsNode = v
	}

	m := &Model{Name: name, index: make(map[string]int)}
	for i := 0; i+1 < len(fieldsNode.Content); i += 2 {
		fname := fieldsNode.Content[i].Value
		f, err := parseField(name, fname, fieldsNode.Content[i+1])
		if err != nil {
			return nil, err
		}
		if _, dup := m.index[fname]; dup {
			return nil, domain.ErrSchema("duplicate field %q on model %q", fname, name)
		}
		m.index[fname] = len(m.Fields)
		m.Fields = append(m.Fields, f)
	}
	return m, nil
}

func parseField(model, name string, node *yaml.Node) (Field, error) {
	if !IsIdentifier(name) {
		return Field{}, domain.ErrSchema("invalid field name %q on model %q", name, model)
	}
	f := Field{Name: name}
	switch node.Kind {
	case yaml.ScalarNode:
		f.Type = node.Value
	case yaml.MappingNode:
		if t := lookup(node, "type"); t != nil {
			f.Type = t.Value
		}
		if opts := lookup(node, "options"); opts != nil {
			options, err := parseOptions(opts)
			if err != nil {
				return Field{}, domain.ErrSchema("options of %s.%s: %v", model, name, err)
			}
			f.Options = options
		}
	default:
		return Field{}, domain.ErrSchema("field %s.%s has unsupported definition (line %d)", model, name, node.Line)
	}
	if f.Type == "" {
		return Field{}, domain.ErrSchema("field %s.%s has no type", model, name)
	}
	return f, nil
}

func parseOptions(node *yaml.Node) ([]Option, error) {
	switch node.Kind {
	case yaml.MappingNode:
		out := make([]Option, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			out = append(out, Option{Value: node.Content[i].Value, Display: node.Content[i+1].Value})
		}
		return out, nil
	case yaml.SequenceNode:
		var out []Option
		if err := node.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping or list (line %d)", node.Line)
	}
}

func lookup(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, s := range list {
		out[s] = true
	}
	return out
}
