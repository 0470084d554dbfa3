package types

// AttributeType categorizes attribute values for typed comparison.
type AttributeType string

const (
	AttributeTypeString    AttributeType = "string"
	AttributeTypeInteger   AttributeType = "integer"
	AttributeTypeFloat     AttributeType = "float"
	AttributeTypeBoolean   AttributeType = "boolean"
	AttributeTypeDateTime  AttributeType = "datetime"
	AttributeTypeOptionSet AttributeType = "optionset"
	AttributeTypeMoney     AttributeType = "money"
	AttributeTypeLookup    AttributeType = "lookup"
)

// Valid reports whether the attribute type is one of the known kinds.
func (t AttributeType) Valid() bool {
	switch t {
	case AttributeTypeString, AttributeTypeInteger, AttributeTypeFloat,
		AttributeTypeBoolean, AttributeTypeDateTime, AttributeTypeOptionSet,
		AttributeTypeMoney, AttributeTypeLookup:
		return true
	}
	return false
}

// EntityMetadata describes one entity: its attribute types, the optional
// self-referencing lookup used by hierarchy operators and the alternate
// key definitions. Alternate-key uniqueness is not enforced here; that
// is an external validation concern.
type EntityMetadata struct {
	LogicalName        string                   `json:"logical_name"`
	Attributes         map[string]AttributeType `json:"attributes"`
	HierarchyAttribute string                   `json:"hierarchy_attribute,omitempty"`
	AlternateKeys      [][]string               `json:"alternate_keys,omitempty"`
}

// Clone deep-copies the metadata so registry mutations by the caller
// after registration cannot leak in.
func (m EntityMetadata) Clone() EntityMetadata {
	clone := EntityMetadata{
		LogicalName:        m.LogicalName,
		HierarchyAttribute: m.HierarchyAttribute,
	}
	if m.Attributes != nil {
		clone.Attributes = make(map[string]AttributeType, len(m.Attributes))
		for k, v := range m.Attributes {
			clone.Attributes[k] = v
		}
	}
	if m.AlternateKeys != nil {
		clone.AlternateKeys = make([][]string, len(m.AlternateKeys))
		for i, key := range m.AlternateKeys {
			clone.AlternateKeys[i] = append([]string(nil), key...)
		}
	}
	return clone
}
