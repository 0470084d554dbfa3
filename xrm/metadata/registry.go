// Package metadata holds the process-wide entity metadata registry.
//
// The registry is populated by test setup code before queries run and is
// read by the evaluator on every typed comparison. Registration is
// idempotent per logical name: re-registering replaces.
package metadata

import (
	"sort"
	"sync"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// Registry maps logical names to entity metadata.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]types.EntityMetadata
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]types.EntityMetadata),
	}
}

// Register stores metadata for an entity, replacing any previous
// registration for the same logical name.
func (r *Registry) Register(m types.EntityMetadata) error {
	if m.LogicalName == "" {
		return errors.New("metadata requires a logical name")
	}
	for attr, at := range m.Attributes {
		if !at.Valid() {
			return errors.Newf("attribute %q has unknown type %q", attr, at)
		}
	}
	if m.HierarchyAttribute != "" {
		if at, ok := m.Attributes[m.HierarchyAttribute]; !ok {
			return errors.Newf("hierarchy attribute %q is not declared on entity %q", m.HierarchyAttribute, m.LogicalName)
		} else if at != types.AttributeTypeLookup {
			return errors.Newf("hierarchy attribute %q on entity %q must be a lookup, got %q", m.HierarchyAttribute, m.LogicalName, at)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[m.LogicalName] = m.Clone()
	return nil
}

// Metadata returns the full metadata for an entity.
func (r *Registry) Metadata(entity string) (types.EntityMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entities[entity]
	if !ok {
		return types.EntityMetadata{}, errors.NewEntityNotRegisteredf("entity %q", entity)
	}
	return m.Clone(), nil
}

// AttributeType returns the declared type of one attribute.
func (r *Registry) AttributeType(entity, attribute string) (types.AttributeType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entities[entity]
	if !ok {
		return "", errors.NewEntityNotRegisteredf("entity %q", entity)
	}
	at, ok := m.Attributes[attribute]
	if !ok {
		return "", errors.NewAttributeNotFoundf("attribute %q on entity %q", attribute, entity)
	}
	return at, nil
}

// HierarchyAttribute returns the self-referencing lookup attribute name
// and whether the entity has one configured.
func (r *Registry) HierarchyAttribute(entity string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entities[entity]
	if !ok {
		return "", false, errors.NewEntityNotRegisteredf("entity %q", entity)
	}
	return m.HierarchyAttribute, m.HierarchyAttribute != "", nil
}

// AlternateKeys returns the alternate key definitions for an entity.
func (r *Registry) AlternateKeys(entity string) ([][]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entities[entity]
	if !ok {
		return nil, errors.NewEntityNotRegisteredf("entity %q", entity)
	}
	return m.Clone().AlternateKeys, nil
}

// Entities returns the registered logical names in sorted order.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
