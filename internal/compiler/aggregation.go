package compiler

import (
	"fmt"
	"strings"

	"dynquery/internal/catalog"
	"dynquery/internal/domain"
)

// AggregationFragment is the compiled form of a summarized query.
type AggregationFragment struct {
	Joins   string
	Columns []string
	Headers []string
	GroupBy string
}

// CompileAggregation groups by the summarize columns and aggregates every
// other selected field: SUM for number fields, COUNT for anything else.
// A field whose `<label>_<field>` header already exists is skipped.
func CompileAggregation(root *domain.SelectionNode, summarize []domain.SummarizeColumn, rollup bool, cat *catalog.Catalog) (AggregationFragment, error) {
	if len(summarize) == 0 {
		return AggregationFragment{}, domain.ErrCompilation("aggregation requires at least one summarize column")
	}
	if err := ValidateTree(root); err != nil {
		return AggregationFragment{}, err
	}

	var frag AggregationFragment
	seen := make(map[string]bool)
	groupBy := make([]string, 0, len(summarize))
	for _, s := range summarize {
		if !catalog.IsIdentifier(s.Table) || !catalog.IsIdentifier(s.Field) {
			return AggregationFragment{}, domain.ErrCompilation("invalid summarize column %q.%q", s.Table, s.Field)
		}
		header := s.Header()
		frag.Columns = append(frag.Columns, fmt.Sprintf("%s.%s AS %s", s.Table, s.Field, header))
		frag.Headers = append(frag.Headers, header)
		groupBy = append(groupBy, header)
		seen[header] = true
	}

	if err := aggregateFields(root, cat, seen, &frag); err != nil {
		return AggregationFragment{}, err
	}
	var joins strings.Builder
	if err := aggregateChildren(root, cat, seen, &joins, &frag); err != nil {
		return AggregationFragment{}, err
	}
	frag.Joins = joins.String()

	frag.GroupBy = "GROUP BY " + strings.Join(groupBy, ", ")
	if rollup {
		frag.GroupBy += " WITH ROLLUP"
	}
	return frag, nil
}

func aggregateChildren(parent *domain.SelectionNode, cat *catalog.Catalog, seen map[string]bool, joins *strings.Builder, frag *AggregationFragment) error {
	for _, child := range parent.Children {
		writeJoin(joins, parent, child)
		if err := aggregateFields(child, cat, seen, frag); err != nil {
			return err
		}
		if err := aggregateChildren(child, cat, seen, joins, frag); err != nil {
			return err
		}
	}
	return nil
}

func aggregateFields(n *domain.SelectionNode, cat *catalog.Catalog, seen map[string]bool, frag *AggregationFragment) error {
	label := n.Alias()
	for _, field := range n.Fields {
		base := label + "_" + field
		if seen[base] {
			continue
		}
		typ, err := cat.FieldType(n.Model, field)
		if err != nil {
			return err
		}
		fn, suffix := "COUNT", "_count"
		if typ == domain.TypeNumber {
			fn, suffix = "SUM", "_sum"
		}
		header := base + suffix
		if seen[header] {
			continue
		}
		seen[header] = true
		frag.Columns = append(frag.Columns, fmt.Sprintf("%s(%s.%s) AS %s", fn, label, field, header))
		frag.Headers = append(frag.Headers, header)
	}
	return nil
}
