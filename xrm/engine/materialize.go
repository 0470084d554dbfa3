package engine

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// project materializes detached result entities from the surviving
// rows: the root column set plus every link's column set under
// "alias.attribute" keys. The root identifier is always carried.
func (ex *Executor) project(ir *query.IR, rows []*row) ([]*types.Entity, error) {
	if err := ex.checkColumns(ir.Entity, ir.Columns); err != nil {
		return nil, err
	}
	if err := ex.checkLinkColumns(ir.Links); err != nil {
		return nil, err
	}

	results := make([]*types.Entity, 0, len(rows))
	for _, r := range rows {
		root := r.recs[""]
		out := types.NewEntity(ir.Entity)
		out.ID = root.ID

		switch {
		case ir.Columns.All:
			for name := range root.Attributes {
				v, _ := root.Get(name)
				out.Set(name, types.CloneValue(v))
			}
		default:
			for _, name := range ir.Columns.Columns {
				if v, ok := recordValue(root, name); ok {
					out.Set(name, types.CloneValue(v))
				}
			}
		}

		projectLinks(out, r, ir.Links)
		results = append(results, out)
	}
	return results, nil
}

func projectLinks(out *types.Entity, r *row, links []query.Link) {
	for i := range links {
		l := &links[i]
		if rec, present := r.recs[l.Alias]; present {
			copyLinkColumns(out, l, rec)
		}
		projectLinks(out, r, l.Links)
	}
}

func copyLinkColumns(out *types.Entity, l *query.Link, rec *types.Entity) {
	emit := func(name string, v any) {
		out.Set(types.AliasedKey(l.Alias, name), types.AliasedValue{
			EntityLogicalName: l.Name,
			Alias:             l.Alias,
			Value:             types.CloneValue(v),
		})
	}
	if l.Columns.All {
		for name := range rec.Attributes {
			v, _ := rec.Get(name)
			emit(name, v)
		}
		return
	}
	for _, name := range l.Columns.Columns {
		if v, ok := recordValue(rec, name); ok {
			emit(name, v)
		}
	}
}

// checkColumns rejects explicitly requested columns the entity does not
// declare. Requested-but-unset attributes are simply absent from results.
func (ex *Executor) checkColumns(entity string, cs query.ColumnSet) error {
	if cs.All {
		return nil
	}
	for _, name := range cs.Columns {
		if _, err := ex.attributeType(entity, name); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Executor) checkLinkColumns(links []query.Link) error {
	for i := range links {
		l := &links[i]
		if err := ex.checkColumns(l.Name, l.Columns); err != nil {
			return err
		}
		if err := ex.checkLinkColumns(l.Links); err != nil {
			return err
		}
	}
	return nil
}

// checkOrders rejects order keys that resolve to nothing. Plain queries
// order by declared attributes, root or "alias.attribute". Aggregated
// queries order by their output keys: aggregate aliases and group-by
// targets.
func checkOrders(ir *query.IR, ev *evaluator) error {
	if len(ir.Aggregates) > 0 {
		valid := make(map[string]struct{}, len(ir.Aggregates)+len(ir.GroupBy))
		for _, agg := range ir.Aggregates {
			valid[agg.Alias] = struct{}{}
		}
		for _, gk := range ir.GroupBy {
			valid[gk] = struct{}{}
		}
		for _, o := range ir.Orders {
			if _, ok := valid[o.Attribute]; !ok {
				return errors.NewAttributeNotFoundf(
					"order key %q is not an aggregate alias or group-by target", o.Attribute)
			}
		}
		return nil
	}
	for _, o := range ir.Orders {
		alias, attr := splitKey(o.Attribute)
		if _, err := ev.attrTypeFor(alias, attr); err != nil {
			return errors.Wrapf(err, "order by %s", o.Attribute)
		}
	}
	return nil
}

// orderRows sorts working rows in place by the order keys, stably so
// ties keep insertion order. Keys may address joined columns with
// "alias.attribute". Null and absent values sort first.
func orderRows(rows []*row, orders []query.Order) error {
	if len(orders) == 0 {
		return nil
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, o := range orders {
			alias, attr := splitKey(o.Attribute)
			av, _ := rows[i].value(alias, attr)
			bv, _ := rows[j].value(alias, attr)
			cmp, err := compareLoose(types.Unwrap(av), types.Unwrap(bv))
			if err != nil {
				sortErr = errors.Wrapf(err, "order by %s", o.Attribute)
				return false
			}
			if cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

// orderResults sorts in place by the order keys, stably so ties keep
// insertion order. Null and absent values sort first; strings compare
// case-insensitively.
func orderResults(results []*types.Entity, orders []query.Order) error {
	if len(orders) == 0 {
		return nil
	}
	var sortErr error
	sort.SliceStable(results, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, o := range orders {
			av, _ := results[i].Get(o.Attribute)
			bv, _ := results[j].Get(o.Attribute)
			cmp, err := compareLoose(types.Unwrap(av), types.Unwrap(bv))
			if err != nil {
				sortErr = errors.Wrapf(err, "order by %s", o.Attribute)
				return false
			}
			if cmp == 0 {
				continue
			}
			if o.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

// compareLoose orders two result values of dynamic type. Aggregated and
// projected values have lost their metadata, so ordering dispatches on
// the concrete Go type. Numeric kinds cross-compare as floats.
func compareLoose(a, b any) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}
	if a == nil {
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}

	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv)), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		switch {
		case !av && bv:
			return -1, nil
		case av && !bv:
			return 1, nil
		}
		return 0, nil
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		switch {
		case av.Before(bv):
			return -1, nil
		case av.After(bv):
			return 1, nil
		}
		return 0, nil
	case types.Identifier:
		bv, ok := b.(types.Identifier)
		if !ok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		return bytes.Compare(av[:], bv[:]), nil
	case types.EntityReference:
		bv, ok := b.(types.EntityReference)
		if !ok {
			return 0, errors.NewTypeMismatchf("cannot order %T against %T", a, b)
		}
		return bytes.Compare(av.ID[:], bv.ID[:]), nil
	default:
		return 0, errors.NewTypeMismatchf("values of type %T have no ordering", a)
	}
}

// toFloat widens any numeric result kind, money included, for ordering.
func toFloat(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case float32:
		return float64(tv), true
	case float64:
		return float64(tv), true
	case types.OptionSetValue:
		return float64(tv.Value), true
	case types.Money:
		return tv.Amount.InexactFloat64(), true
	case decimal.Decimal:
		return tv.InexactFloat64(), true
	default:
		return 0, false
	}
}
