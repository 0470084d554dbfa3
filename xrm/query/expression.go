package query

import (
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
)

// Expr is a node of the composable predicate expression tree. The marker
// method prevents external types from implementing Expr.
type Expr interface {
	expr()
}

// AndExpr is the logical AND of its terms.
type AndExpr struct {
	Terms []Expr
}

func (*AndExpr) expr() {}

// OrExpr is the logical OR of its terms.
type OrExpr struct {
	Terms []Expr
}

func (*OrExpr) expr() {}

// NotExpr is the logical negation of its term.
type NotExpr struct {
	Term Expr
}

func (*NotExpr) expr() {}

// CondExpr is a leaf predicate.
type CondExpr struct {
	Alias     string
	Attribute string
	Operator  Operator
	Values    []any
}

func (*CondExpr) expr() {}

// NewAnd combines expressions with AND, flattening nested AndExprs.
func NewAnd(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	out := &AndExpr{}
	for _, t := range terms {
		if a, ok := t.(*AndExpr); ok {
			out.Terms = append(out.Terms, a.Terms...)
		} else {
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

// NewOr combines expressions with OR, flattening nested OrExprs.
func NewOr(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	out := &OrExpr{}
	for _, t := range terms {
		if o, ok := t.(*OrExpr); ok {
			out.Terms = append(out.Terms, o.Terms...)
		} else {
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

// NewNot negates an expression.
func NewNot(term Expr) Expr {
	return &NotExpr{Term: term}
}

// AttrRef names an attribute so predicates can be built fluently:
// query.Attr("name").Equal("Contoso").
type AttrRef struct {
	alias string
	name  string
}

// Attr references an attribute of the root entity.
func Attr(name string) AttrRef {
	return AttrRef{name: name}
}

// LinkAttr references an attribute of a joined entity by its link alias.
func LinkAttr(alias, name string) AttrRef {
	return AttrRef{alias: alias, name: name}
}

func (a AttrRef) cond(op Operator, values ...any) Expr {
	return &CondExpr{Alias: a.alias, Attribute: a.name, Operator: op, Values: values}
}

// Equal builds an equality predicate.
func (a AttrRef) Equal(v any) Expr { return a.cond(OpEqual, v) }

// NotEqual builds an inequality predicate.
func (a AttrRef) NotEqual(v any) Expr { return a.cond(OpNotEqual, v) }

// GreaterThan builds a strict greater-than predicate.
func (a AttrRef) GreaterThan(v any) Expr { return a.cond(OpGreater, v) }

// GreaterOrEqual builds a greater-or-equal predicate.
func (a AttrRef) GreaterOrEqual(v any) Expr { return a.cond(OpGreaterEqual, v) }

// LessThan builds a strict less-than predicate.
func (a AttrRef) LessThan(v any) Expr { return a.cond(OpLess, v) }

// LessOrEqual builds a less-or-equal predicate.
func (a AttrRef) LessOrEqual(v any) Expr { return a.cond(OpLessEqual, v) }

// Null tests attribute absence or an explicit null value.
func (a AttrRef) Null() Expr { return a.cond(OpNull) }

// NotNull tests attribute presence with a non-null value.
func (a AttrRef) NotNull() Expr { return a.cond(OpNotNull) }

// Like builds a case-insensitive wildcard match (% and _).
func (a AttrRef) Like(pattern string) Expr { return a.cond(OpLike, pattern) }

// NotLike negates Like.
func (a AttrRef) NotLike(pattern string) Expr { return a.cond(OpNotLike, pattern) }

// BeginsWith builds a case-insensitive prefix test.
func (a AttrRef) BeginsWith(prefix string) Expr { return a.cond(OpBeginsWith, prefix) }

// EndsWith builds a case-insensitive suffix test.
func (a AttrRef) EndsWith(suffix string) Expr { return a.cond(OpEndsWith, suffix) }

// Contains builds a case-insensitive substring test.
func (a AttrRef) Contains(sub string) Expr { return a.cond(OpContains, sub) }

// In builds a membership predicate.
func (a AttrRef) In(values ...any) Expr { return a.cond(OpIn, values...) }

// NotIn builds a non-membership predicate.
func (a AttrRef) NotIn(values ...any) Expr { return a.cond(OpNotIn, values...) }

// On tests that a datetime falls on the operand's calendar date.
func (a AttrRef) On(v any) Expr { return a.cond(OpOn, v) }

// OnOrBefore tests the calendar date is on or before the operand's.
func (a AttrRef) OnOrBefore(v any) Expr { return a.cond(OpOnOrBefore, v) }

// OnOrAfter tests the calendar date is on or after the operand's.
func (a AttrRef) OnOrAfter(v any) Expr { return a.cond(OpOnOrAfter, v) }

// Above tests the record is an ancestor of the pivot id.
func (a AttrRef) Above(pivot any) Expr { return a.cond(OpAbove, pivot) }

// AboveOrEqual tests the record is the pivot or one of its ancestors.
func (a AttrRef) AboveOrEqual(pivot any) Expr { return a.cond(OpAboveOrEqual, pivot) }

// Under tests the record is a descendant of the pivot id.
func (a AttrRef) Under(pivot any) Expr { return a.cond(OpUnder, pivot) }

// UnderOrEqual tests the record is the pivot or one of its descendants.
func (a AttrRef) UnderOrEqual(pivot any) Expr { return a.cond(OpUnderOrEqual, pivot) }

// ChildOf tests the record is a direct child of the pivot id.
func (a AttrRef) ChildOf(pivot any) Expr { return a.cond(OpChildOf, pivot) }

// InFiscalPeriod tests the datetime falls in the given fiscal period of
// any year.
func (a AttrRef) InFiscalPeriod(period int) Expr { return a.cond(OpInFiscalPeriod, period) }

// InFiscalPeriodAndYear tests the datetime falls in the given fiscal
// period and year.
func (a AttrRef) InFiscalPeriodAndYear(period, year int) Expr {
	return a.cond(OpInFiscalPeriodAndYear, period, year)
}

// InOrBeforeFiscalPeriodAndYear tests the datetime falls in or before
// the given fiscal period and year.
func (a AttrRef) InOrBeforeFiscalPeriodAndYear(period, year int) Expr {
	return a.cond(OpInOrBeforeFiscalPeriodAndYear, period, year)
}

// InOrAfterFiscalPeriodAndYear tests the datetime falls in or after the
// given fiscal period and year.
func (a AttrRef) InOrAfterFiscalPeriodAndYear(period, year int) Expr {
	return a.cond(OpInOrAfterFiscalPeriodAndYear, period, year)
}

// ThisFiscalPeriod tests the datetime falls in the current fiscal period.
func (a AttrRef) ThisFiscalPeriod() Expr { return a.cond(OpThisFiscalPeriod) }

// ThisFiscalYear tests the datetime falls in the current fiscal year.
func (a AttrRef) ThisFiscalYear() Expr { return a.cond(OpThisFiscalYear) }

// LastFiscalPeriod tests the datetime falls in the previous fiscal period.
func (a AttrRef) LastFiscalPeriod() Expr { return a.cond(OpLastFiscalPeriod) }

// LastFiscalYear tests the datetime falls in the previous fiscal year.
func (a AttrRef) LastFiscalYear() Expr { return a.cond(OpLastFiscalYear) }

// NextFiscalPeriod tests the datetime falls in the next fiscal period.
func (a AttrRef) NextFiscalPeriod() Expr { return a.cond(OpNextFiscalPeriod) }

// NextFiscalYear tests the datetime falls in the next fiscal year.
func (a AttrRef) NextFiscalYear() Expr { return a.cond(OpNextFiscalYear) }

// lowerExpr walks an expression tree and lowers it to a Filter tree.
// NOT nodes are pushed down with De Morgan's laws until they reach leaf
// predicates, which are replaced by their negated operator.
func lowerExpr(e Expr, negated bool) (*Filter, error) {
	switch node := e.(type) {
	case *CondExpr:
		op := node.Operator
		if negated {
			var err error
			if op, err = op.Negate(); err != nil {
				return nil, err
			}
		}
		return &Filter{
			Operator: And,
			Conditions: []Condition{{
				EntityAlias: node.Alias,
				Attribute:   node.Attribute,
				Operator:    op,
				Values:      append([]any(nil), node.Values...),
			}},
		}, nil

	case *NotExpr:
		return lowerExpr(node.Term, !negated)

	case *AndExpr:
		op := And
		if negated {
			op = Or
		}
		return lowerTerms(node.Terms, op, negated)

	case *OrExpr:
		op := Or
		if negated {
			op = And
		}
		return lowerTerms(node.Terms, op, negated)

	default:
		return nil, errors.Newf("unknown expression node %T", e)
	}
}

func lowerTerms(terms []Expr, op LogicalOperator, negated bool) (*Filter, error) {
	out := &Filter{Operator: op}
	for _, t := range terms {
		child, err := lowerExpr(t, negated)
		if err != nil {
			return nil, err
		}
		// single-condition children collapse into this filter
		if len(child.Filters) == 0 && len(child.Conditions) == 1 {
			out.Conditions = append(out.Conditions, child.Conditions[0])
			continue
		}
		out.Filters = append(out.Filters, child)
	}
	return out, nil
}
