package types

import (
	"github.com/shopspring/decimal"
)

// OptionSetValue is an integer-coded enumeration value.
type OptionSetValue struct {
	Value int `json:"value"`
}

// Money is a currency amount. Decimal arithmetic keeps aggregation exact;
// platform money semantics do not tolerate float drift.
type Money struct {
	Amount decimal.Decimal `json:"amount"`
}

// NewMoney creates a Money value from a float amount.
func NewMoney(amount float64) Money {
	return Money{Amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromString creates a Money value from a decimal string.
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d}, nil
}

// EntityReference is a typed pointer to a record by logical name and id,
// optionally carrying alternate-key attributes instead of an id.
type EntityReference struct {
	LogicalName   string         `json:"logical_name"`
	ID            Identifier     `json:"id"`
	KeyAttributes map[string]any `json:"key_attributes,omitempty"`
}

// NewEntityReference creates a reference by logical name and id.
func NewEntityReference(logicalName string, id Identifier) EntityReference {
	return EntityReference{LogicalName: logicalName, ID: id}
}

// Clone deep-copies the reference, including alternate-key attributes.
func (r EntityReference) Clone() EntityReference {
	clone := EntityReference{LogicalName: r.LogicalName, ID: r.ID}
	if r.KeyAttributes != nil {
		clone.KeyAttributes = make(map[string]any, len(r.KeyAttributes))
		for k, v := range r.KeyAttributes {
			clone.KeyAttributes[k] = CloneValue(v)
		}
	}
	return clone
}

// AliasedValue tags a value with the joined or aggregated source it came
// from. Produced only by the engine, never stored.
type AliasedValue struct {
	EntityLogicalName string `json:"entity_logical_name"`
	Alias             string `json:"alias"`
	Value             any    `json:"value"`
}

// Unwrap returns the innermost value of a possibly aliased value.
func Unwrap(v any) any {
	for {
		av, ok := v.(AliasedValue)
		if !ok {
			return v
		}
		v = av.Value
	}
}
