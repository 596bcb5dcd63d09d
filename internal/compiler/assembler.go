package compiler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dynquery/internal/catalog"
	"dynquery/internal/domain"
)

var orderItemRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*(\s+(?i:ASC|DESC))?$`)

// Assembler composes the selection, filter and aggregation compilers into
// one statement. It is bound to a single catalog snapshot.
type Assembler struct {
	catalog *catalog.Catalog
	filters FilterCompiler
}

// NewAssembler creates an assembler for the given catalog snapshot.
func NewAssembler(cat *catalog.Catalog, sourceOffset time.Duration) *Assembler {
	return &Assembler{catalog: cat, filters: FilterCompiler{SourceOffset: sourceOffset}}
}

// Assemble compiles q into a CompiledQuery. Nothing is executed.
func (a *Assembler) Assemble(q domain.ObjectQuery) (*domain.CompiledQuery, error) {
	root, err := rootNode(q.Model, q.Selection)
	if err != nil {
		return nil, err
	}
	if err := ValidateTree(root); err != nil {
		return nil, err
	}
	aliases, err := checkSchema(a.catalog, root)
	if err != nil {
		return nil, err
	}
	if q.Limit < 0 {
		return nil, domain.ErrValidation("limit must not be negative")
	}

	where, args, err := a.where(q.Filters, aliases)
	if err != nil {
		return nil, err
	}

	label := root.Alias()
	aggregate := len(q.Summarize) > 0
	var (
		columns []string
		headers []string
		joins   string
		groupBy string
	)

	switch {
	case q.DryRun && len(root.Children) == 0:
		columns = append(columns, root.Fields...)
		headers = append(headers, root.Fields...)
	case aggregate:
		frag, err := CompileAggregation(root, q.Summarize, q.Rollup, a.catalog)
		if err != nil {
			return nil, err
		}
		columns, headers, joins, groupBy = frag.Columns, frag.Headers, frag.Joins, frag.GroupBy
	default:
		if !q.RenameFields && !q.DryRun {
			if err := checkReferenceLookup(root); err != nil {
				return nil, err
			}
		}
		for _, f := range root.Fields {
			switch {
			case q.RenameFields || q.DryRun:
				columns = append(columns, fmt.Sprintf("%s.%s AS %s_%s", label, f, label, f))
				headers = append(headers, label+"_"+f)
			case f == "id":
				columns = append(columns, label+".id AS id")
				headers = append(headers, "id")
			default:
				columns = append(columns, label+"."+f+" AS display")
				headers = append(headers, "display")
			}
		}
		frag, err := CompileSelection(root)
		if err != nil {
			return nil, err
		}
		columns = append(columns, frag.Columns...)
		headers = append(headers, frag.Headers...)
		joins = frag.Joins
	}
	if len(columns) == 0 {
		return nil, domain.ErrCompilation("selection on %q has no fields", root.Model)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(fromClause(root))
	b.WriteString(joins)
	if where != "" {
		b.WriteString(" " + where)
	}
	if groupBy != "" {
		b.WriteString(" " + groupBy)
	}
	if groupBy == "" && where != "" {
		order := strings.TrimSpace(q.OrderBy)
		if order == "" {
			order = label + ".row_num DESC"
		} else if err := validateOrderBy(order); err != nil {
			return nil, err
		}
		b.WriteString(" ORDER BY " + order)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return &domain.CompiledQuery{
		SQL:     b.String(),
		Args:    args,
		Headers: headers,
		DryRun:  q.DryRun,
	}, nil
}

// AssembleCount compiles `SELECT count(*) AS id` over the same joins and
// filters a full query would use.
func (a *Assembler) AssembleCount(model string, selection *domain.SelectionNode, filters []domain.FilterCriterion) (*domain.CompiledQuery, error) {
	root, err := rootNode(model, selection)
	if err != nil {
		return nil, err
	}
	frag, err := CompileSelection(root)
	if err != nil {
		return nil, err
	}
	aliases, err := checkSchema(a.catalog, root)
	if err != nil {
		return nil, err
	}
	where, args, err := a.where(filters, aliases)
	if err != nil {
		return nil, err
	}

	sql := "SELECT count(*) AS id FROM " + fromClause(root) + frag.Joins
	if where != "" {
		sql += " " + where
	}
	return &domain.CompiledQuery{SQL: sql, Args: args, Headers: []string{"id"}}, nil
}

// where fills missing criterion types from the catalog and compiles the
// WHERE clause. Criteria naming an alias of the tree must reference a field
// of that alias's model.
func (a *Assembler) where(filters []domain.FilterCriterion, aliases map[string]*catalog.Model) (string, []any, error) {
	if len(filters) < 2 {
		return "", nil, nil
	}
	resolved := make([]domain.FilterCriterion, len(filters))
	for i, c := range filters {
		if m, ok := aliases[c.Table]; ok {
			f, ok := m.Field(c.Field)
			if !ok {
				return "", nil, domain.ErrSchema("unknown field %q on %q", c.Field, c.Table)
			}
			if c.Type == "" {
				c.Type = f.Type
			}
		}
		resolved[i] = c
	}
	return a.filters.Compile(resolved)
}

// checkReferenceLookup rejects a reference lookup naming more than one
// non-id root field, which would yield several "display" columns.
func checkReferenceLookup(root *domain.SelectionNode) error {
	var display []string
	for _, f := range root.Fields {
		if f != "id" {
			display = append(display, f)
		}
	}
	if len(display) > 1 {
		return domain.ErrCompilation("reference lookup on %q must select one display field, got %s; set rename_fields for a full listing",
			root.Model, strings.Join(display, ", "))
	}
	return nil
}

func rootNode(model string, selection *domain.SelectionNode) (*domain.SelectionNode, error) {
	if selection == nil {
		if model == "" {
			return nil, domain.ErrCompilation("model is required")
		}
		return nil, domain.ErrCompilation("selection for %q is required", model)
	}
	root := *selection
	if root.Model == "" {
		root.Model = model
	}
	if model != "" && root.Model != model {
		return nil, domain.ErrCompilation("selection model %q does not match %q", root.Model, model)
	}
	return &root, nil
}

func fromClause(root *domain.SelectionNode) string {
	if root.Alias() == root.Model {
		return root.Model
	}
	return root.Model + " AS " + root.Alias()
}

func validateOrderBy(order string) error {
	for _, item := range strings.Split(order, ",") {
		if !orderItemRe.MatchString(strings.TrimSpace(item)) {
			return domain.ErrValidation("invalid order_by item %q", strings.TrimSpace(item))
		}
	}
	return nil
}
