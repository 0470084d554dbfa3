package engine

import (
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// row is one working row of the pipeline: the root record plus the
// record matched under each link alias. An alias with no entry is an
// outer-join miss. The root record lives under the empty alias.
type row struct {
	recs map[string]*types.Entity
}

func newRow(root *types.Entity) *row {
	return &row{recs: map[string]*types.Entity{"": root}}
}

// clone copies the alias map. The records themselves are shared; the
// pipeline never mutates them before projection.
func (r *row) clone() *row {
	recs := make(map[string]*types.Entity, len(r.recs)+1)
	for alias, rec := range r.recs {
		recs[alias] = rec
	}
	return &row{recs: recs}
}

// value resolves an attribute on the record under the given alias.
// ok is false when the alias has no record or the attribute is unset.
func (r *row) value(alias, attribute string) (any, bool) {
	rec, found := r.recs[alias]
	if !found {
		return nil, false
	}
	return recordValue(rec, attribute)
}

// primaryKey reports whether name addresses the record identifier by
// the "<logicalname>id" convention.
func primaryKey(entity, name string) bool {
	return name == entity+"id"
}

// recordValue reads an attribute, falling back to the record identifier
// for the primary-key name.
func recordValue(rec *types.Entity, name string) (any, bool) {
	if v, ok := rec.Get(name); ok {
		return v, true
	}
	if primaryKey(rec.LogicalName, name) {
		return rec.ID, true
	}
	return nil, false
}

// buildRows scans the root entity and expands every link, multiplying
// rows per join match.
func (ex *Executor) buildRows(ir *query.IR) ([]*row, error) {
	base := ex.store.Scan(ir.Entity)
	rows := make([]*row, 0, len(base))
	for _, rec := range base {
		rows = append(rows, newRow(rec))
	}
	var err error
	for i := range ir.Links {
		rows, err = ex.expandLink(rows, &ir.Links[i], ir.Entity, "")
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// expandLink joins one link against every row. outerAlias names the row
// record carrying the link's To attribute ("" for the root). Inner joins
// drop unmatched rows; outer joins keep them with the alias absent.
func (ex *Executor) expandLink(rows []*row, l *query.Link, outerEntity, outerAlias string) ([]*row, error) {
	if _, err := ex.attributeType(outerEntity, l.To); err != nil {
		return nil, err
	}
	fromType, err := ex.attributeType(l.Name, l.From)
	if err != nil {
		return nil, err
	}

	candidates := ex.store.Scan(l.Name)

	out := make([]*row, 0, len(rows))
	for _, r := range rows {
		matched := 0
		outerVal, ok := r.value(outerAlias, l.To)
		if ok && !isNull(outerVal) {
			for _, cand := range candidates {
				innerVal, present := recordValue(cand, l.From)
				if !present || isNull(innerVal) {
					continue
				}
				same, err := equalValues(outerVal, innerVal, fromType)
				if err != nil {
					return nil, err
				}
				if !same {
					continue
				}
				nr := r.clone()
				nr.recs[l.Alias] = cand
				out = append(out, nr)
				matched++
			}
		}
		if matched == 0 && l.Type == query.Outer {
			out = append(out, r.clone())
		}
	}

	for i := range l.Links {
		out, err = ex.expandLink(out, &l.Links[i], l.Name, l.Alias)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
