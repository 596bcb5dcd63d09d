// Package compiler turns declarative object queries into parameterized SQL.
package compiler

import (
	"fmt"
	"strings"

	"dynquery/internal/catalog"
	"dynquery/internal/domain"
)

// SelectionFragment is the compiled form of the nested part of a selection
// tree. Joins carries a leading space per clause so it can be appended
// directly after the FROM target.
type SelectionFragment struct {
	Joins   string
	Columns []string
	Headers []string
}

// CompileSelection emits one LEFT JOIN per nested relation and one aliased
// column per nested field, walking children in declaration order. Root
// fields are left to the assembler.
func CompileSelection(root *domain.SelectionNode) (SelectionFragment, error) {
	if err := ValidateTree(root); err != nil {
		return SelectionFragment{}, err
	}
	var frag SelectionFragment
	var b strings.Builder
	compileChildren(root, &b, &frag)
	frag.Joins = b.String()
	return frag, nil
}

func compileChildren(parent *domain.SelectionNode, joins *strings.Builder, frag *SelectionFragment) {
	for _, child := range parent.Children {
		writeJoin(joins, parent, child)
		label := child.Alias()
		for _, field := range child.Fields {
			frag.Columns = append(frag.Columns, fmt.Sprintf("%s.%s AS %s_%s", label, field, label, field))
			frag.Headers = append(frag.Headers, label+"_"+field)
		}
		compileChildren(child, joins, frag)
	}
}

func writeJoin(b *strings.Builder, parent, child *domain.SelectionNode) {
	label := child.Alias()
	fmt.Fprintf(b, " LEFT JOIN %s AS %s ON %s.%s_id = %s.id", child.Model, label, parent.Alias(), label, label)
}

// ValidateTree checks that every model, label and field in the tree is a
// plain identifier and that labels are unique across the whole tree.
func ValidateTree(root *domain.SelectionNode) error {
	if root == nil {
		return domain.ErrCompilation("selection is required")
	}
	seen := make(map[string]bool)
	return validateNode(root, seen)
}

func validateNode(n *domain.SelectionNode, seen map[string]bool) error {
	if n.Model == "" {
		return domain.ErrCompilation("selection node %q has no model", n.Label)
	}
	if !catalog.IsIdentifier(n.Model) {
		return domain.ErrCompilation("invalid model name %q", n.Model)
	}
	label := n.Alias()
	if !catalog.IsIdentifier(label) {
		return domain.ErrCompilation("invalid label %q", label)
	}
	if seen[label] {
		return domain.ErrCompilation("duplicate label %q in selection", label)
	}
	seen[label] = true
	for _, f := range n.Fields {
		if !catalog.IsIdentifier(f) {
			return domain.ErrCompilation("invalid field name %q on %q", f, label)
		}
	}
	for _, child := range n.Children {
		if child == nil {
			return domain.ErrCompilation("empty child under %q", label)
		}
		if err := validateNode(child, seen); err != nil {
			return err
		}
	}
	return nil
}

// checkSchema verifies every node against the catalog and returns the
// alias to model mapping of the tree.
func checkSchema(cat *catalog.Catalog, root *domain.SelectionNode) (map[string]*catalog.Model, error) {
	aliases := make(map[string]*catalog.Model)
	var walk func(n *domain.SelectionNode) error
	walk = func(n *domain.SelectionNode) error {
		m, err := cat.Model(n.Model)
		if err != nil {
			return err
		}
		for _, f := range n.Fields {
			if _, ok := m.Field(f); !ok {
				return domain.ErrSchema("unknown field %q on model %q", f, n.Model)
			}
		}
		aliases[n.Alias()] = m
		for _, child := range n.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return aliases, nil
}
