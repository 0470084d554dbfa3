package query

import (
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
)

// LogicalOperator combines the members of a filter.
type LogicalOperator string

const (
	And LogicalOperator = "and"
	Or  LogicalOperator = "or"
)

// JoinType selects inner or outer join behavior for a link.
type JoinType string

const (
	Inner JoinType = "inner"
	Outer JoinType = "outer"
)

// AggregateFn is an aggregate function over a group.
type AggregateFn string

const (
	AggCount       AggregateFn = "count"       // rows in the group
	AggCountColumn AggregateFn = "countcolumn" // non-null values of the attribute
	AggSum         AggregateFn = "sum"
	AggAvg         AggregateFn = "avg"
	AggMin         AggregateFn = "min"
	AggMax         AggregateFn = "max"
)

// Valid reports whether the aggregate function is known.
func (f AggregateFn) Valid() bool {
	switch f {
	case AggCount, AggCountColumn, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// ColumnSet selects which attributes a query projects. The zero value
// selects the identifier only.
type ColumnSet struct {
	All     bool
	Columns []string
}

// AllColumns selects every present attribute.
func AllColumns() ColumnSet { return ColumnSet{All: true} }

// Columns selects exactly the named attributes.
func Columns(names ...string) ColumnSet { return ColumnSet{Columns: names} }

// Condition is one predicate: attribute, operator, operand values.
// EntityAlias is empty for root-entity attributes and holds the link
// alias for conditions addressing joined columns.
type Condition struct {
	EntityAlias string
	Attribute   string
	Operator    Operator
	Values      []any
}

// Filter is a recursive boolean combination of conditions.
type Filter struct {
	Operator   LogicalOperator
	Conditions []Condition
	Filters    []*Filter
}

// Link is a join specification against another entity. Name is the
// joined entity; From is the matching attribute on the joined entity and
// To the matching attribute on the outer side (document grammar
// convention). Joined columns surface as "alias.attribute".
type Link struct {
	Name    string
	From    string
	To      string
	Alias   string
	Type    JoinType
	Columns ColumnSet
	Filter  *Filter
	Links   []Link
}

// Aggregate is one aggregate column: fold Fn over Attribute, exposing
// the result under Alias.
type Aggregate struct {
	Attribute string
	Fn        AggregateFn
	Alias     string
}

// Order is one ordering key. Attribute may be an "alias.attribute" key
// for joined columns or an aggregate alias.
type Order struct {
	Attribute  string
	Descending bool
}

// IR is the canonical internal query form every front end lowers to and
// the only form the engine executes.
type IR struct {
	Entity     string
	Columns    ColumnSet
	Filter     *Filter
	Links      []Link
	GroupBy    []string
	Aggregates []Aggregate
	Orders     []Order
	Top        int
}

// Validate checks structural invariants common to all front ends.
func (ir *IR) Validate() error {
	if ir.Entity == "" {
		return errors.New("query requires a root entity")
	}
	if ir.Top < 0 {
		return errors.Newf("top must be non-negative, got %d", ir.Top)
	}
	if len(ir.GroupBy) > 0 && len(ir.Aggregates) == 0 {
		return errors.New("group by requires at least one aggregate")
	}
	for _, agg := range ir.Aggregates {
		if !agg.Fn.Valid() {
			return errors.Newf("unknown aggregate function %q", agg.Fn)
		}
		if agg.Alias == "" {
			return errors.Newf("aggregate %s(%s) requires an alias", agg.Fn, agg.Attribute)
		}
		if agg.Attribute == "" && agg.Fn != AggCount {
			return errors.Newf("aggregate %s requires an attribute", agg.Fn)
		}
	}
	if ir.Filter != nil {
		if err := validateFilter(ir.Filter); err != nil {
			return err
		}
	}
	for i := range ir.Links {
		if err := validateLink(&ir.Links[i]); err != nil {
			return err
		}
	}
	for _, o := range ir.Orders {
		if o.Attribute == "" {
			return errors.New("order requires an attribute")
		}
	}
	return nil
}

func validateFilter(f *Filter) error {
	if f.Operator != And && f.Operator != Or {
		return errors.Newf("unknown filter operator %q", f.Operator)
	}
	for _, c := range f.Conditions {
		if c.Attribute == "" {
			return errors.New("condition requires an attribute")
		}
		if !c.Operator.Valid() {
			return errors.Newf("unknown operator %q", c.Operator)
		}
		if err := c.Operator.ValidateOperands(c.Values); err != nil {
			return err
		}
	}
	for _, child := range f.Filters {
		if err := validateFilter(child); err != nil {
			return err
		}
	}
	return nil
}

func validateLink(l *Link) error {
	if l.Name == "" || l.From == "" || l.To == "" {
		return errors.New("link requires name, from and to")
	}
	if l.Type != Inner && l.Type != Outer {
		return errors.Newf("unknown join type %q", l.Type)
	}
	if l.Filter != nil {
		if err := validateFilter(l.Filter); err != nil {
			return err
		}
	}
	for i := range l.Links {
		if err := validateLink(&l.Links[i]); err != nil {
			return err
		}
	}
	return nil
}
