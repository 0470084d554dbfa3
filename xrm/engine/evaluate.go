package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/fiscal"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/hierarchy"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// evaluator evaluates one query's filter tree against rows. It caches
// the alias map, compiled like-patterns and hierarchy sets for the
// duration of the execution.
type evaluator struct {
	ex        *Executor
	aliases   map[string]string
	likeCache map[string]*regexp.Regexp
	hierCache map[string]hierarchy.IDSet
}

func (ex *Executor) newEvaluator(ir *query.IR) (*evaluator, error) {
	aliases := map[string]string{"": ir.Entity}
	if err := collectAliases(ir.Links, aliases); err != nil {
		return nil, err
	}
	return &evaluator{
		ex:        ex,
		aliases:   aliases,
		likeCache: map[string]*regexp.Regexp{},
		hierCache: map[string]hierarchy.IDSet{},
	}, nil
}

func collectAliases(links []query.Link, aliases map[string]string) error {
	for i := range links {
		l := &links[i]
		if _, dup := aliases[l.Alias]; dup {
			return errors.Newf("duplicate link alias %q", l.Alias)
		}
		aliases[l.Alias] = l.Name
		if err := collectAliases(l.Links, aliases); err != nil {
			return err
		}
	}
	return nil
}

// attrTypeFor resolves the declared type of an attribute addressed by
// link alias, the empty alias being the root entity.
func (ev *evaluator) attrTypeFor(alias, attribute string) (types.AttributeType, error) {
	entity, known := ev.aliases[alias]
	if !known {
		return "", errors.Newf("unknown link alias %q", alias)
	}
	return ev.ex.attributeType(entity, attribute)
}

// attributeType is the registry lookup plus the primary-key fallback:
// "<logicalname>id" is implicitly a lookup even when undeclared.
func (ex *Executor) attributeType(entity, attribute string) (types.AttributeType, error) {
	at, err := ex.registry.AttributeType(entity, attribute)
	if err != nil && errors.IsAttributeNotFound(err) && primaryKey(entity, attribute) {
		return types.AttributeTypeLookup, nil
	}
	return at, err
}

func (ev *evaluator) filterRows(rows []*row, f *query.Filter) ([]*row, error) {
	if f == nil {
		return rows, nil
	}
	out := make([]*row, 0, len(rows))
	for _, r := range rows {
		keep, err := ev.evalFilter(r, f)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

func (ev *evaluator) evalFilter(r *row, f *query.Filter) (bool, error) {
	// A filter with nothing to test is vacuous and matches every row,
	// for OR as well as AND.
	if len(f.Conditions) == 0 && len(f.Filters) == 0 {
		return true, nil
	}
	and := f.Operator == query.And
	for i := range f.Conditions {
		ok, err := ev.evalCondition(r, &f.Conditions[i])
		if err != nil {
			return false, err
		}
		if ok != and {
			return ok, nil
		}
	}
	for _, child := range f.Filters {
		ok, err := ev.evalFilter(r, child)
		if err != nil {
			return false, err
		}
		if ok != and {
			return ok, nil
		}
	}
	return and, nil
}

func (ev *evaluator) evalCondition(r *row, c *query.Condition) (bool, error) {
	entity, known := ev.aliases[c.EntityAlias]
	if !known {
		return false, errors.Newf("condition references unknown link alias %q", c.EntityAlias)
	}

	// Hierarchy operators test record identity against a resolved set,
	// so the condition attribute names the relationship by convention
	// and is not looked up in metadata.
	if c.Operator.IsHierarchy() {
		return ev.evalHierarchy(r, c, entity)
	}

	attrType, err := ev.ex.attributeType(entity, c.Attribute)
	if err != nil {
		return false, err
	}

	raw, _ := r.value(c.EntityAlias, c.Attribute)
	switch c.Operator {
	case query.OpNull:
		return isNull(raw), nil
	case query.OpNotNull:
		return !isNull(raw), nil
	}

	if c.Operator.IsFiscal() {
		return ev.evalFiscal(c, attrType, raw)
	}

	// Operand mismatches are hard failures even when the attribute is
	// absent, so coercion runs before the null short-circuit.
	operands := make([]any, len(c.Values))
	for i, v := range c.Values {
		ov, err := coerceOperand(v, attrType)
		if err != nil {
			return false, errors.Wrapf(err, "operand %d of %s %s", i, c.Attribute, c.Operator)
		}
		operands[i] = ov
	}
	if isNull(raw) {
		return false, nil
	}
	val, err := coerceOperand(types.Unwrap(raw), attrType)
	if err != nil {
		return false, errors.Wrapf(err, "attribute %s", c.Attribute)
	}

	switch c.Operator {
	case query.OpEqual:
		return equalCanonical(val, operands[0], attrType)
	case query.OpNotEqual:
		eq, err := equalCanonical(val, operands[0], attrType)
		return !eq, err
	case query.OpGreater, query.OpGreaterEqual, query.OpLess, query.OpLessEqual:
		cmp, err := compareCanonical(val, operands[0], attrType)
		if err != nil {
			return false, err
		}
		switch c.Operator {
		case query.OpGreater:
			return cmp > 0, nil
		case query.OpGreaterEqual:
			return cmp >= 0, nil
		case query.OpLess:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case query.OpIn, query.OpNotIn:
		found := false
		for _, op := range operands {
			eq, err := equalCanonical(val, op, attrType)
			if err != nil {
				return false, err
			}
			if eq {
				found = true
				break
			}
		}
		if c.Operator == query.OpIn {
			return found, nil
		}
		return !found, nil
	case query.OpLike, query.OpNotLike,
		query.OpBeginsWith, query.OpEndsWith,
		query.OpContains, query.OpDoesNotContain:
		return ev.evalString(c.Operator, val, operands[0], attrType)
	case query.OpOn, query.OpOnOrBefore, query.OpOnOrAfter:
		return evalOnDate(c.Operator, val, operands[0], attrType)
	default:
		return false, errors.Newf("operator %q is not executable", c.Operator)
	}
}

// coerceOperand canonicalizes a record or operand value for its declared
// attribute type. Document operands arrive as strings and parse here.
func coerceOperand(v any, at types.AttributeType) (any, error) {
	switch at {
	case types.AttributeTypeString:
		return coerceString(v)
	case types.AttributeTypeInteger, types.AttributeTypeOptionSet:
		return coerceInteger(v)
	case types.AttributeTypeFloat:
		return coerceFloat(v)
	case types.AttributeTypeBoolean:
		return coerceBool(v)
	case types.AttributeTypeDateTime:
		return coerceDateTime(v)
	case types.AttributeTypeMoney:
		return coerceMoney(v)
	case types.AttributeTypeLookup:
		return coerceID(v)
	default:
		return nil, errors.NewTypeMismatchf("unsupported attribute type %q", at)
	}
}

// equalValues coerces two raw values to the attribute's canonical form
// and compares them. The join engine matches keys with it.
func equalValues(a, b any, at types.AttributeType) (bool, error) {
	ca, err := coerceOperand(types.Unwrap(a), at)
	if err != nil {
		return false, err
	}
	cb, err := coerceOperand(types.Unwrap(b), at)
	if err != nil {
		return false, err
	}
	return equalCanonical(ca, cb, at)
}

// equalCanonical compares two canonicalized values for equality.
// Strings compare case-insensitively.
func equalCanonical(a, b any, at types.AttributeType) (bool, error) {
	switch at {
	case types.AttributeTypeString:
		return strings.EqualFold(a.(string), b.(string)), nil
	case types.AttributeTypeInteger, types.AttributeTypeOptionSet:
		return a.(int64) == b.(int64), nil
	case types.AttributeTypeFloat:
		return a.(float64) == b.(float64), nil
	case types.AttributeTypeBoolean:
		return a.(bool) == b.(bool), nil
	case types.AttributeTypeDateTime:
		return a.(time.Time).Equal(b.(time.Time)), nil
	case types.AttributeTypeMoney:
		return a.(decimal.Decimal).Equal(b.(decimal.Decimal)), nil
	case types.AttributeTypeLookup:
		return a.(types.Identifier) == b.(types.Identifier), nil
	default:
		return false, errors.NewTypeMismatchf("unsupported attribute type %q", at)
	}
}

// compareCanonical orders two canonicalized values. Booleans and lookups
// have no ordering.
func compareCanonical(a, b any, at types.AttributeType) (int, error) {
	switch at {
	case types.AttributeTypeString:
		return strings.Compare(strings.ToLower(a.(string)), strings.ToLower(b.(string))), nil
	case types.AttributeTypeInteger, types.AttributeTypeOptionSet:
		av, bv := a.(int64), b.(int64)
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case types.AttributeTypeFloat:
		av, bv := a.(float64), b.(float64)
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case types.AttributeTypeDateTime:
		av, bv := a.(time.Time), b.(time.Time)
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		}
		return 0, nil
	case types.AttributeTypeMoney:
		return a.(decimal.Decimal).Cmp(b.(decimal.Decimal)), nil
	default:
		return 0, errors.NewTypeMismatchf("attribute type %q has no ordering", at)
	}
}

func (ev *evaluator) evalString(op query.Operator, val, operand any, at types.AttributeType) (bool, error) {
	if at != types.AttributeTypeString {
		return false, errors.NewTypeMismatchf("operator %q requires a string attribute, got %q", op, at)
	}
	s := strings.ToLower(val.(string))
	pat := strings.ToLower(operand.(string))
	switch op {
	case query.OpLike:
		return ev.likeRegexp(pat).MatchString(s), nil
	case query.OpNotLike:
		return !ev.likeRegexp(pat).MatchString(s), nil
	case query.OpBeginsWith:
		return strings.HasPrefix(s, pat), nil
	case query.OpEndsWith:
		return strings.HasSuffix(s, pat), nil
	case query.OpContains:
		return strings.Contains(s, pat), nil
	default:
		return !strings.Contains(s, pat), nil
	}
}

// likeRegexp compiles a like-pattern: % matches any run, _ any single
// character, everything else is literal. Patterns arrive lowercased.
func (ev *evaluator) likeRegexp(pattern string) *regexp.Regexp {
	if re, ok := ev.likeCache[pattern]; ok {
		return re
	}
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re := regexp.MustCompile(b.String())
	ev.likeCache[pattern] = re
	return re
}

func evalOnDate(op query.Operator, val, operand any, at types.AttributeType) (bool, error) {
	if at != types.AttributeTypeDateTime {
		return false, errors.NewTypeMismatchf("operator %q requires a datetime attribute, got %q", op, at)
	}
	day := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	a, b := day(val.(time.Time)), day(operand.(time.Time))
	switch op {
	case query.OpOn:
		return a.Equal(b), nil
	case query.OpOnOrBefore:
		return !a.After(b), nil
	default:
		return !a.Before(b), nil
	}
}

func (ev *evaluator) evalFiscal(c *query.Condition, at types.AttributeType, raw any) (bool, error) {
	if at != types.AttributeTypeDateTime {
		return false, errors.NewTypeMismatchf("operator %q requires a datetime attribute, got %q", c.Operator, at)
	}
	operands := make([]int, len(c.Values))
	for i, v := range c.Values {
		n, err := coerceInteger(v)
		if err != nil {
			return false, errors.Wrapf(err, "operand %d of %s %s", i, c.Attribute, c.Operator)
		}
		operands[i] = int(n)
	}
	if isNull(raw) {
		return false, nil
	}
	t, err := coerceDateTime(types.Unwrap(raw))
	if err != nil {
		return false, errors.Wrapf(err, "attribute %s", c.Attribute)
	}

	cal := ev.ex.calendar
	now := ev.ex.clock.Now()
	period, year := cal.PeriodOf(t)
	nowPeriod, nowYear := cal.ThisPeriod(now)

	switch c.Operator {
	case query.OpInFiscalPeriod:
		return period == operands[0], nil
	case query.OpInFiscalPeriodAndYear:
		return period == operands[0] && year == operands[1], nil
	case query.OpInOrBeforeFiscalPeriodAndYear:
		return fiscal.Compare(period, year, operands[0], operands[1]) <= 0, nil
	case query.OpInOrAfterFiscalPeriodAndYear:
		return fiscal.Compare(period, year, operands[0], operands[1]) >= 0, nil
	case query.OpThisFiscalPeriod:
		return period == nowPeriod && year == nowYear, nil
	case query.OpThisFiscalYear:
		return year == nowYear, nil
	case query.OpLastFiscalPeriod:
		p, y := cal.LastPeriod(now)
		return period == p && year == y, nil
	case query.OpNextFiscalPeriod:
		p, y := cal.NextPeriod(now)
		return period == p && year == y, nil
	case query.OpLastFiscalYear:
		return year == nowYear-1, nil
	default:
		return year == nowYear+1, nil
	}
}

func (ev *evaluator) evalHierarchy(r *row, c *query.Condition, entity string) (bool, error) {
	pivot, err := coerceID(types.Unwrap(c.Values[0]))
	if err != nil {
		return false, errors.Wrapf(err, "operand of %s %s", c.Attribute, c.Operator)
	}
	set, err := ev.hierarchySet(entity, c.Operator, pivot)
	if err != nil {
		return false, err
	}
	rec, present := r.recs[c.EntityAlias]
	if !present {
		return false, nil
	}
	return set.Contains(rec.ID), nil
}

func (ev *evaluator) hierarchySet(entity string, op query.Operator, pivot types.Identifier) (hierarchy.IDSet, error) {
	key := entity + "\x00" + string(op) + "\x00" + pivot.String()
	if set, ok := ev.hierCache[key]; ok {
		return set, nil
	}
	var (
		set hierarchy.IDSet
		err error
	)
	switch op {
	case query.OpAbove:
		set, err = ev.ex.resolver.AncestorsOf(entity, pivot)
	case query.OpAboveOrEqual:
		set, err = ev.ex.resolver.AboveOrEqual(entity, pivot)
	case query.OpUnder:
		set, err = ev.ex.resolver.DescendantsOf(entity, pivot)
	case query.OpUnderOrEqual:
		set, err = ev.ex.resolver.UnderOrEqual(entity, pivot)
	default:
		set, err = ev.ex.resolver.DirectChildrenOf(entity, pivot)
	}
	if err != nil {
		return nil, err
	}
	ev.hierCache[key] = set
	return set, nil
}
