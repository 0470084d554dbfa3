// Package types defines the record and metadata types shared by the
// Fake4Dataverse store and query engine.
package types

import (
	"strings"

	"github.com/google/uuid"
)

// Identifier is the 128-bit unique id of a record. The zero value
// (uuid.Nil) means "not yet assigned".
type Identifier = uuid.UUID

// Entity represents one typed record: a logical name, an identifier and a
// sparse attribute map. A missing key means "not retrieved/not set",
// which is distinct from a key holding an explicit nil.
type Entity struct {
	LogicalName string         `json:"logical_name"`
	ID          Identifier     `json:"id"`
	Attributes  map[string]any `json:"attributes"`
}

// NewEntity creates an empty record of the given logical name.
func NewEntity(logicalName string) *Entity {
	return &Entity{
		LogicalName: logicalName,
		Attributes:  make(map[string]any),
	}
}

// Get returns the attribute value and whether the attribute is present.
func (e *Entity) Get(name string) (any, bool) {
	if e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// Set stores an attribute value, allocating the map on first use.
func (e *Entity) Set(name string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[name] = value
}

// Clone returns a deep copy. The store clones on every boundary crossing
// so callers can never observe or cause a partial mutation.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := &Entity{
		LogicalName: e.LogicalName,
		ID:          e.ID,
	}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]any, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = CloneValue(v)
		}
	}
	return clone
}

// Ref returns an EntityReference pointing at this record.
func (e *Entity) Ref() EntityReference {
	return EntityReference{LogicalName: e.LogicalName, ID: e.ID}
}

// AliasedKey builds the attribute key under which joined and aggregated
// columns are stored ("alias.attribute").
func AliasedKey(alias, attribute string) string {
	return alias + "." + attribute
}

// SplitAliasedKey splits an "alias.attribute" key. ok is false when the
// key carries no alias.
func SplitAliasedKey(key string) (alias, attribute string, ok bool) {
	idx := strings.Index(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", key, false
	}
	return key[:idx], key[idx+1:], true
}

// CloneValue deep-copies an attribute value. Scalars, time.Time, decimals
// and ids are value types; only reference-holding variants need work.
func CloneValue(v any) any {
	switch tv := v.(type) {
	case EntityReference:
		return tv.Clone()
	case *EntityReference:
		if tv == nil {
			return (*EntityReference)(nil)
		}
		c := tv.Clone()
		return &c
	case AliasedValue:
		return AliasedValue{
			EntityLogicalName: tv.EntityLogicalName,
			Alias:             tv.Alias,
			Value:             CloneValue(tv.Value),
		}
	default:
		return v
	}
}
