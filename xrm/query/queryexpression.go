package query

import (
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
)

// QueryExpression is the structured query-object front end: a direct
// object-graph description of root entity, column set, nested filter
// expressions, link entities, ordering, grouping and paging.
type QueryExpression struct {
	EntityName   string
	ColumnSet    ColumnSet
	Criteria     *FilterExpression
	LinkEntities []*LinkEntity
	GroupBy      []string
	Aggregates   []Aggregate
	Orders       []OrderExpression
	TopCount     int
}

// FilterExpression is a boolean combination of condition expressions and
// nested filters. A zero FilterOperator means And.
type FilterExpression struct {
	FilterOperator LogicalOperator
	Conditions     []ConditionExpression
	Filters        []*FilterExpression
}

// ConditionExpression is one predicate of the structured form.
type ConditionExpression struct {
	EntityAlias   string
	AttributeName string
	Operator      Operator
	Values        []any
}

// LinkEntity joins the containing entity to another via a lookup
// attribute pair. LinkFromAttributeName lives on the containing (outer)
// entity, LinkToAttributeName on the joined entity.
type LinkEntity struct {
	LinkFromAttributeName string
	LinkToEntityName      string
	LinkToAttributeName   string
	EntityAlias           string
	JoinOperator          JoinType
	Columns               ColumnSet
	LinkCriteria          *FilterExpression
	LinkEntities          []*LinkEntity
}

// OrderExpression is one ordering key of the structured form.
type OrderExpression struct {
	AttributeName string
	Descending    bool
}

// NewQueryExpression creates a query against one root entity.
func NewQueryExpression(entityName string) *QueryExpression {
	return &QueryExpression{EntityName: entityName}
}

// Translate lowers the object graph to the canonical IR. The mapping is
// purely structural; defaults are filled by Normalize.
func (q *QueryExpression) Translate() (*IR, error) {
	ir := &IR{
		Entity:     q.EntityName,
		Columns:    q.ColumnSet,
		GroupBy:    append([]string(nil), q.GroupBy...),
		Aggregates: append([]Aggregate(nil), q.Aggregates...),
		Top:        q.TopCount,
	}

	if q.Criteria != nil {
		ir.Filter = translateFilterExpression(q.Criteria)
	}

	for _, le := range q.LinkEntities {
		link, err := translateLinkEntity(le)
		if err != nil {
			return nil, err
		}
		ir.Links = append(ir.Links, link)
	}

	for _, o := range q.Orders {
		ir.Orders = append(ir.Orders, Order{Attribute: o.AttributeName, Descending: o.Descending})
	}

	ir.Normalize()
	if err := ir.Validate(); err != nil {
		return nil, err
	}
	return ir, nil
}

func translateFilterExpression(fe *FilterExpression) *Filter {
	f := &Filter{Operator: fe.FilterOperator}
	for _, ce := range fe.Conditions {
		f.Conditions = append(f.Conditions, Condition{
			EntityAlias: ce.EntityAlias,
			Attribute:   ce.AttributeName,
			Operator:    ce.Operator,
			Values:      append([]any(nil), ce.Values...),
		})
	}
	for _, child := range fe.Filters {
		f.Filters = append(f.Filters, translateFilterExpression(child))
	}
	return f
}

func translateLinkEntity(le *LinkEntity) (Link, error) {
	if le == nil {
		return Link{}, errors.New("nil link entity")
	}
	link := Link{
		Name:    le.LinkToEntityName,
		From:    le.LinkToAttributeName,
		To:      le.LinkFromAttributeName,
		Alias:   le.EntityAlias,
		Type:    le.JoinOperator,
		Columns: le.Columns,
	}
	if le.LinkCriteria != nil {
		link.Filter = translateFilterExpression(le.LinkCriteria)
	}
	for _, nested := range le.LinkEntities {
		child, err := translateLinkEntity(nested)
		if err != nil {
			return Link{}, err
		}
		link.Links = append(link.Links, child)
	}
	return link, nil
}
