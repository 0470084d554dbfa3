// Package hierarchy computes ancestor, descendant and child sets over an
// entity's self-referencing lookup relationship.
//
// Traversal is iterative breadth-first and visits each id at most once,
// so a cyclic parent chain truncates at the point of re-visit instead of
// erroring or looping.
package hierarchy

import (
	"github.com/google/uuid"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/metadata"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/store"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// IDSet is a set of record identifiers.
type IDSet map[types.Identifier]struct{}

// Contains reports membership.
func (s IDSet) Contains(id types.Identifier) bool {
	_, ok := s[id]
	return ok
}

// Resolver traverses self-referencing relationships by consulting the
// store on demand; records never embed their relatives.
type Resolver struct {
	store    *store.Store
	registry *metadata.Registry
}

// NewResolver creates a resolver over the given store and registry.
func NewResolver(s *store.Store, r *metadata.Registry) *Resolver {
	return &Resolver{store: s, registry: r}
}

// hierarchyAttribute returns the configured self-referencing lookup or
// ErrHierarchyAttributeMissing.
func (r *Resolver) hierarchyAttribute(entity string) (string, error) {
	attr, ok, err := r.registry.HierarchyAttribute(entity)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Wrapf(errors.ErrHierarchyAttributeMissing, "entity %q", entity)
	}
	return attr, nil
}

// parentID extracts the parent identifier from a record's hierarchy
// attribute. Supports EntityReference and raw identifier storage.
func parentID(rec *types.Entity, attr string) (types.Identifier, bool) {
	v, ok := rec.Get(attr)
	if !ok || v == nil {
		return uuid.Nil, false
	}
	switch ref := types.Unwrap(v).(type) {
	case types.EntityReference:
		if ref.ID == uuid.Nil {
			return uuid.Nil, false
		}
		return ref.ID, true
	case *types.EntityReference:
		if ref == nil || ref.ID == uuid.Nil {
			return uuid.Nil, false
		}
		return ref.ID, true
	case types.Identifier:
		if ref == uuid.Nil {
			return uuid.Nil, false
		}
		return ref, true
	default:
		return uuid.Nil, false
	}
}

// AncestorsOf returns every ancestor of id reachable over the hierarchy
// attribute (the Above set). The pivot itself is not included.
func (r *Resolver) AncestorsOf(entity string, id types.Identifier) (IDSet, error) {
	attr, err := r.hierarchyAttribute(entity)
	if err != nil {
		return nil, err
	}

	ancestors := make(IDSet)
	visited := IDSet{id: {}}

	current := id
	for {
		rec, ok := r.store.Get(entity, current)
		if !ok {
			break
		}
		parent, ok := parentID(rec, attr)
		if !ok || visited.Contains(parent) {
			break
		}
		ancestors[parent] = struct{}{}
		visited[parent] = struct{}{}
		current = parent
	}
	return ancestors, nil
}

// childIndex builds a parent-id -> child-ids index from one scan.
func (r *Resolver) childIndex(entity, attr string) map[types.Identifier][]types.Identifier {
	index := make(map[types.Identifier][]types.Identifier)
	for _, rec := range r.store.Scan(entity) {
		if parent, ok := parentID(rec, attr); ok {
			index[parent] = append(index[parent], rec.ID)
		}
	}
	return index
}

// DescendantsOf returns every descendant of id (the Under set). The
// pivot itself is not included.
func (r *Resolver) DescendantsOf(entity string, id types.Identifier) (IDSet, error) {
	attr, err := r.hierarchyAttribute(entity)
	if err != nil {
		return nil, err
	}

	index := r.childIndex(entity, attr)
	descendants := make(IDSet)
	visited := IDSet{id: {}}

	queue := []types.Identifier{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range index[current] {
			if visited.Contains(child) {
				continue
			}
			visited[child] = struct{}{}
			descendants[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return descendants, nil
}

// DirectChildrenOf returns the depth-1 descendants of id (the ChildOf set).
func (r *Resolver) DirectChildrenOf(entity string, id types.Identifier) (IDSet, error) {
	attr, err := r.hierarchyAttribute(entity)
	if err != nil {
		return nil, err
	}

	children := make(IDSet)
	for _, child := range r.childIndex(entity, attr)[id] {
		children[child] = struct{}{}
	}
	return children, nil
}

// AboveOrEqual returns AncestorsOf plus the pivot itself.
func (r *Resolver) AboveOrEqual(entity string, id types.Identifier) (IDSet, error) {
	set, err := r.AncestorsOf(entity, id)
	if err != nil {
		return nil, err
	}
	set[id] = struct{}{}
	return set, nil
}

// UnderOrEqual returns DescendantsOf plus the pivot itself.
func (r *Resolver) UnderOrEqual(entity string, id types.Identifier) (IDSet, error) {
	set, err := r.DescendantsOf(entity, id)
	if err != nil {
		return nil, err
	}
	set[id] = struct{}{}
	return set, nil
}
