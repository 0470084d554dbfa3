// Package query defines the canonical query representation shared by
// every front end, plus the two programmatic front ends that produce it:
// the structured QueryExpression object graph and the composable
// expression-tree Builder. The document front end lives in xrm/fetchxml.
package query

import (
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
)

// Operator is a condition operator. The string values use the document
// grammar spelling so the three front ends share one vocabulary.
type Operator string

const (
	// Equality and comparison
	OpEqual        Operator = "eq"
	OpNotEqual     Operator = "ne"
	OpGreater      Operator = "gt"
	OpGreaterEqual Operator = "ge"
	OpLess         Operator = "lt"
	OpLessEqual    Operator = "le"

	// Null checks
	OpNull    Operator = "null"
	OpNotNull Operator = "not-null"

	// String matching (case-insensitive)
	OpLike           Operator = "like"
	OpNotLike        Operator = "not-like"
	OpBeginsWith     Operator = "begins-with"
	OpEndsWith       Operator = "ends-with"
	OpContains       Operator = "contains"
	OpDoesNotContain Operator = "does-not-contain"

	// Set membership
	OpIn    Operator = "in"
	OpNotIn Operator = "not-in"

	// Calendar-date comparison for datetimes
	OpOn         Operator = "on"
	OpOnOrBefore Operator = "on-or-before"
	OpOnOrAfter  Operator = "on-or-after"

	// Hierarchy traversal over the self-referencing lookup
	OpAbove        Operator = "above"
	OpAboveOrEqual Operator = "eq-or-above"
	OpUnder        Operator = "under"
	OpUnderOrEqual Operator = "eq-or-under"
	OpChildOf      Operator = "child-of"

	// Fiscal calendar
	OpInFiscalPeriod                Operator = "in-fiscal-period"
	OpInFiscalPeriodAndYear         Operator = "in-fiscal-period-and-year"
	OpInOrBeforeFiscalPeriodAndYear Operator = "in-or-before-fiscal-period-and-year"
	OpInOrAfterFiscalPeriodAndYear  Operator = "in-or-after-fiscal-period-and-year"
	OpThisFiscalPeriod              Operator = "this-fiscal-period"
	OpThisFiscalYear                Operator = "this-fiscal-year"
	OpLastFiscalPeriod              Operator = "last-fiscal-period"
	OpLastFiscalYear                Operator = "last-fiscal-year"
	OpNextFiscalPeriod              Operator = "next-fiscal-period"
	OpNextFiscalYear                Operator = "next-fiscal-year"
)

// operandCounts maps each operator to its required operand count.
// -1 means "one or more".
var operandCounts = map[Operator]int{
	OpEqual:        1,
	OpNotEqual:     1,
	OpGreater:      1,
	OpGreaterEqual: 1,
	OpLess:         1,
	OpLessEqual:    1,

	OpNull:    0,
	OpNotNull: 0,

	OpLike:           1,
	OpNotLike:        1,
	OpBeginsWith:     1,
	OpEndsWith:       1,
	OpContains:       1,
	OpDoesNotContain: 1,

	OpIn:    -1,
	OpNotIn: -1,

	OpOn:         1,
	OpOnOrBefore: 1,
	OpOnOrAfter:  1,

	OpAbove:        1,
	OpAboveOrEqual: 1,
	OpUnder:        1,
	OpUnderOrEqual: 1,
	OpChildOf:      1,

	OpInFiscalPeriod:                1,
	OpInFiscalPeriodAndYear:         2,
	OpInOrBeforeFiscalPeriodAndYear: 2,
	OpInOrAfterFiscalPeriodAndYear:  2,
	OpThisFiscalPeriod:              0,
	OpThisFiscalYear:                0,
	OpLastFiscalPeriod:              0,
	OpLastFiscalYear:                0,
	OpNextFiscalPeriod:              0,
	OpNextFiscalYear:                0,
}

// negations maps each negatable operator to its negation.
var negations = map[Operator]Operator{
	OpEqual:          OpNotEqual,
	OpNotEqual:       OpEqual,
	OpGreater:        OpLessEqual,
	OpLessEqual:      OpGreater,
	OpLess:           OpGreaterEqual,
	OpGreaterEqual:   OpLess,
	OpNull:           OpNotNull,
	OpNotNull:        OpNull,
	OpLike:           OpNotLike,
	OpNotLike:        OpLike,
	OpContains:       OpDoesNotContain,
	OpDoesNotContain: OpContains,
	OpIn:             OpNotIn,
	OpNotIn:          OpIn,
}

// Valid reports whether the operator is one of the known kinds.
func (o Operator) Valid() bool {
	_, ok := operandCounts[o]
	return ok
}

// IsHierarchy reports whether the operator traverses the self-referencing
// hierarchy relationship.
func (o Operator) IsHierarchy() bool {
	switch o {
	case OpAbove, OpAboveOrEqual, OpUnder, OpUnderOrEqual, OpChildOf:
		return true
	}
	return false
}

// IsFiscal reports whether the operator consults the fiscal calendar.
func (o Operator) IsFiscal() bool {
	switch o {
	case OpInFiscalPeriod, OpInFiscalPeriodAndYear,
		OpInOrBeforeFiscalPeriodAndYear, OpInOrAfterFiscalPeriodAndYear,
		OpThisFiscalPeriod, OpThisFiscalYear,
		OpLastFiscalPeriod, OpLastFiscalYear,
		OpNextFiscalPeriod, OpNextFiscalYear:
		return true
	}
	return false
}

// Negate returns the operator expressing "not (this)". Hierarchy, fiscal
// and range-like operators have no negation.
func (o Operator) Negate() (Operator, error) {
	n, ok := negations[o]
	if !ok {
		return "", errors.Newf("operator %q cannot be negated", o)
	}
	return n, nil
}

// ValidateOperands checks the operand count against the operator's arity.
func (o Operator) ValidateOperands(values []any) error {
	want, ok := operandCounts[o]
	if !ok {
		return errors.Newf("unknown operator %q", o)
	}
	switch {
	case want == -1:
		if len(values) == 0 {
			return errors.Newf("operator %q requires at least one operand", o)
		}
	case len(values) != want:
		return errors.Newf("operator %q requires %d operand(s), got %d", o, want, len(values))
	}
	return nil
}
