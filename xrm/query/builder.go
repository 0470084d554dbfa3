package query

// Builder is the composable expression-tree front end. Calls chain; the
// terminal Translate lowers the accumulated expression to the canonical
// IR. Builders are cheap value-carriers, not safe for concurrent use.
type Builder struct {
	entity     string
	columns    ColumnSet
	where      Expr
	links      []Link
	groupBy    []string
	aggregates []Aggregate
	orders     []Order
	top        int
}

// NewBuilder starts a query against one root entity.
func NewBuilder(entity string) *Builder {
	return &Builder{entity: entity}
}

// Select projects exactly the named attributes.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = Columns(columns...)
	return b
}

// SelectAll projects every present attribute.
func (b *Builder) SelectAll() *Builder {
	b.columns = AllColumns()
	return b
}

// Where sets the filter expression. Repeated calls AND the expressions
// together.
func (b *Builder) Where(e Expr) *Builder {
	if b.where == nil {
		b.where = e
	} else {
		b.where = NewAnd(b.where, e)
	}
	return b
}

// InnerJoin links another entity, dropping unmatched rows. from is the
// matching attribute on the root side, to the attribute on the joined
// entity; the joined columns surface under the alias.
func (b *Builder) InnerJoin(name, from, to, alias string, columns ...string) *Builder {
	b.links = append(b.links, Link{
		Name: name, From: to, To: from, Alias: alias,
		Type: Inner, Columns: Columns(columns...),
	})
	return b
}

// OuterJoin links another entity, keeping unmatched rows with absent
// joined columns.
func (b *Builder) OuterJoin(name, from, to, alias string, columns ...string) *Builder {
	b.links = append(b.links, Link{
		Name: name, From: to, To: from, Alias: alias,
		Type: Outer, Columns: Columns(columns...),
	})
	return b
}

// Join appends a fully specified link, nested links included.
func (b *Builder) Join(link Link) *Builder {
	b.links = append(b.links, link)
	return b
}

// GroupBy adds grouping attributes for an aggregate query.
func (b *Builder) GroupBy(attributes ...string) *Builder {
	b.groupBy = append(b.groupBy, attributes...)
	return b
}

// Aggregate adds one aggregate column.
func (b *Builder) Aggregate(attribute string, fn AggregateFn, alias string) *Builder {
	b.aggregates = append(b.aggregates, Aggregate{Attribute: attribute, Fn: fn, Alias: alias})
	return b
}

// OrderBy adds an ascending ordering key.
func (b *Builder) OrderBy(attribute string) *Builder {
	b.orders = append(b.orders, Order{Attribute: attribute})
	return b
}

// OrderByDesc adds a descending ordering key.
func (b *Builder) OrderByDesc(attribute string) *Builder {
	b.orders = append(b.orders, Order{Attribute: attribute, Descending: true})
	return b
}

// Top limits the result to the first n records after ordering.
func (b *Builder) Top(n int) *Builder {
	b.top = n
	return b
}

// Translate lowers the builder to the canonical IR.
func (b *Builder) Translate() (*IR, error) {
	ir := &IR{
		Entity:     b.entity,
		Columns:    b.columns,
		Links:      append([]Link(nil), b.links...),
		GroupBy:    append([]string(nil), b.groupBy...),
		Aggregates: append([]Aggregate(nil), b.aggregates...),
		Orders:     append([]Order(nil), b.orders...),
		Top:        b.top,
	}

	if b.where != nil {
		filter, err := lowerExpr(b.where, false)
		if err != nil {
			return nil, err
		}
		ir.Filter = filter
	}

	ir.Normalize()
	if err := ir.Validate(); err != nil {
		return nil, err
	}
	return ir, nil
}
