package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// group is one aggregation bucket: the display value per group-by key
// plus the rows that landed in the bucket.
type group struct {
	keys map[string]any
	rows []*row
}

// splitKey breaks an "alias.attribute" target into its parts. Plain
// attribute names address the root entity.
func splitKey(key string) (alias, attribute string) {
	if a, attr, ok := types.SplitAliasedKey(key); ok {
		return a, attr
	}
	return "", key
}

// aggregate buckets the filtered rows by the group-by keys, folds every
// aggregate over each bucket and emits one result entity per bucket in
// first-seen group order. Without group-by keys there is exactly one
// bucket, even over zero rows.
func (ex *Executor) aggregate(ir *query.IR, ev *evaluator, rows []*row) ([]*types.Entity, error) {
	groups := linkedhashmap.New()
	for _, r := range rows {
		var kb strings.Builder
		keys := make(map[string]any, len(ir.GroupBy))
		for _, gk := range ir.GroupBy {
			alias, attr := splitKey(gk)
			at, err := ev.attrTypeFor(alias, attr)
			if err != nil {
				return nil, err
			}
			raw, _ := r.value(alias, attr)
			if isNull(raw) {
				kb.WriteByte(0)
				keys[gk] = nil
				continue
			}
			cv, err := coerceOperand(types.Unwrap(raw), at)
			if err != nil {
				return nil, errors.Wrapf(err, "group by %s", gk)
			}
			kb.WriteString(groupKeyComponent(cv, at))
			kb.WriteByte(0)
			keys[gk] = types.Unwrap(raw)
		}

		key := kb.String()
		if existing, ok := groups.Get(key); ok {
			g := existing.(*group)
			g.rows = append(g.rows, r)
			continue
		}
		if groups.Size() >= ex.maxGroups {
			return nil, errors.Newf("aggregation exceeds the cap of %d distinct groups", ex.maxGroups)
		}
		groups.Put(key, &group{keys: keys, rows: []*row{r}})
	}
	if len(ir.GroupBy) == 0 && groups.Size() == 0 {
		groups.Put("", &group{keys: map[string]any{}})
	}

	results := make([]*types.Entity, 0, groups.Size())
	it := groups.Iterator()
	for it.Next() {
		g := it.Value().(*group)
		out := types.NewEntity(ir.Entity)
		for _, gk := range ir.GroupBy {
			alias, _ := splitKey(gk)
			out.Set(gk, types.AliasedValue{
				EntityLogicalName: ev.aliases[alias],
				Alias:             gk,
				Value:             types.CloneValue(g.keys[gk]),
			})
		}
		for _, agg := range ir.Aggregates {
			v, entity, err := ex.computeAggregate(ir.Entity, ev, g, agg)
			if err != nil {
				return nil, err
			}
			out.Set(agg.Alias, types.AliasedValue{
				EntityLogicalName: entity,
				Alias:             agg.Alias,
				Value:             v,
			})
		}
		results = append(results, out)
	}
	return results, nil
}

// groupKeyComponent renders a canonical value into the bucket key.
// Strings fold to lower case so grouping matches equality semantics.
func groupKeyComponent(cv any, at types.AttributeType) string {
	switch at {
	case types.AttributeTypeString:
		return strings.ToLower(cv.(string))
	case types.AttributeTypeDateTime:
		return cv.(time.Time).UTC().Format(time.RFC3339Nano)
	case types.AttributeTypeMoney:
		return cv.(decimal.Decimal).String()
	case types.AttributeTypeLookup:
		return cv.(types.Identifier).String()
	default:
		return fmt.Sprint(cv)
	}
}

// computeAggregate folds one aggregate over a bucket. Null and missing
// values are skipped; count counts rows, countcolumn counts non-null
// values. A sum over no values is the typed zero, every other fold over
// no values is null.
func (ex *Executor) computeAggregate(rootEntity string, ev *evaluator, g *group, agg query.Aggregate) (any, string, error) {
	if agg.Fn == query.AggCount {
		return len(g.rows), rootEntity, nil
	}

	alias, attr := splitKey(agg.Attribute)
	at, err := ev.attrTypeFor(alias, attr)
	if err != nil {
		return nil, "", err
	}
	entity := ev.aliases[alias]

	vals := make([]any, 0, len(g.rows))
	for _, r := range g.rows {
		raw, _ := r.value(alias, attr)
		if isNull(raw) {
			continue
		}
		cv, err := coerceOperand(types.Unwrap(raw), at)
		if err != nil {
			return nil, "", errors.Wrapf(err, "aggregate %s(%s)", agg.Fn, agg.Attribute)
		}
		vals = append(vals, cv)
	}

	if agg.Fn == query.AggCountColumn {
		return len(vals), entity, nil
	}

	v, err := foldAggregate(agg, at, vals)
	if err != nil {
		return nil, "", err
	}
	return v, entity, nil
}

func foldAggregate(agg query.Aggregate, at types.AttributeType, vals []any) (any, error) {
	switch at {
	case types.AttributeTypeInteger, types.AttributeTypeOptionSet:
		return foldIntegers(agg.Fn, vals)
	case types.AttributeTypeFloat:
		return foldFloats(agg.Fn, vals)
	case types.AttributeTypeMoney:
		return foldMoney(agg.Fn, vals)
	case types.AttributeTypeDateTime:
		if agg.Fn != query.AggMin && agg.Fn != query.AggMax {
			return nil, errors.NewTypeMismatchf("aggregate %s is not defined for datetime attributes", agg.Fn)
		}
		return foldTimes(agg.Fn, vals), nil
	case types.AttributeTypeString:
		if agg.Fn != query.AggMin && agg.Fn != query.AggMax {
			return nil, errors.NewTypeMismatchf("aggregate %s is not defined for string attributes", agg.Fn)
		}
		return foldStrings(agg.Fn, vals), nil
	default:
		return nil, errors.NewTypeMismatchf("aggregate %s is not defined for %q attributes", agg.Fn, at)
	}
}

func foldIntegers(fn query.AggregateFn, vals []any) (any, error) {
	switch fn {
	case query.AggSum:
		var total int64
		for _, v := range vals {
			total += v.(int64)
		}
		return total, nil
	case query.AggAvg:
		if len(vals) == 0 {
			return nil, nil
		}
		data := make(stats.Float64Data, len(vals))
		for i, v := range vals {
			data[i] = float64(v.(int64))
		}
		mean, err := stats.Mean(data)
		if err != nil {
			return nil, errors.Wrap(err, "avg")
		}
		return mean, nil
	case query.AggMin, query.AggMax:
		if len(vals) == 0 {
			return nil, nil
		}
		best := vals[0].(int64)
		for _, v := range vals[1:] {
			n := v.(int64)
			if (fn == query.AggMin && n < best) || (fn == query.AggMax && n > best) {
				best = n
			}
		}
		return best, nil
	default:
		return nil, errors.NewTypeMismatchf("aggregate %s is not defined for integer attributes", fn)
	}
}

func foldFloats(fn query.AggregateFn, vals []any) (any, error) {
	data := make(stats.Float64Data, len(vals))
	for i, v := range vals {
		data[i] = v.(float64)
	}
	if len(data) == 0 {
		if fn == query.AggSum {
			return float64(0), nil
		}
		return nil, nil
	}
	var (
		out float64
		err error
	)
	switch fn {
	case query.AggSum:
		out, err = stats.Sum(data)
	case query.AggAvg:
		out, err = stats.Mean(data)
	case query.AggMin:
		out, err = stats.Min(data)
	case query.AggMax:
		out, err = stats.Max(data)
	default:
		return nil, errors.NewTypeMismatchf("aggregate %s is not defined for float attributes", fn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", fn)
	}
	return out, nil
}

func foldMoney(fn query.AggregateFn, vals []any) (any, error) {
	if len(vals) == 0 {
		if fn == query.AggSum {
			return types.Money{Amount: decimal.Zero}, nil
		}
		return nil, nil
	}
	switch fn {
	case query.AggSum, query.AggAvg:
		total := decimal.Zero
		for _, v := range vals {
			total = total.Add(v.(decimal.Decimal))
		}
		if fn == query.AggAvg {
			total = total.Div(decimal.NewFromInt(int64(len(vals))))
		}
		return types.Money{Amount: total}, nil
	case query.AggMin, query.AggMax:
		best := vals[0].(decimal.Decimal)
		for _, v := range vals[1:] {
			d := v.(decimal.Decimal)
			cmp := d.Cmp(best)
			if (fn == query.AggMin && cmp < 0) || (fn == query.AggMax && cmp > 0) {
				best = d
			}
		}
		return types.Money{Amount: best}, nil
	default:
		return nil, errors.NewTypeMismatchf("aggregate %s is not defined for money attributes", fn)
	}
}

func foldTimes(fn query.AggregateFn, vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	best := vals[0].(time.Time)
	for _, v := range vals[1:] {
		t := v.(time.Time)
		if (fn == query.AggMin && t.Before(best)) || (fn == query.AggMax && t.After(best)) {
			best = t
		}
	}
	return best
}

func foldStrings(fn query.AggregateFn, vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	best := vals[0].(string)
	for _, v := range vals[1:] {
		s := v.(string)
		cmp := strings.Compare(strings.ToLower(s), strings.ToLower(best))
		if (fn == query.AggMin && cmp < 0) || (fn == query.AggMax && cmp > 0) {
			best = s
		}
	}
	return best
}
