package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// datetimeLayouts are the accepted textual datetime forms, most specific
// first. Document-front-end operands arrive as strings and are coerced
// here against the attribute's declared type.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceString coerces a value to the canonical form for a String attribute.
func coerceString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewTypeMismatchf("expected string, got %T", v)
}

// coerceInteger coerces to int64. Strings parse; floats are rejected.
func coerceInteger(v any) (int64, error) {
	switch tv := v.(type) {
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case int64:
		return tv, nil
	case types.OptionSetValue:
		return int64(tv.Value), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(tv), 10, 64)
		if err != nil {
			return 0, errors.NewTypeMismatchf("cannot parse %q as integer", tv)
		}
		return n, nil
	default:
		return 0, errors.NewTypeMismatchf("expected integer, got %T", v)
	}
}

// coerceFloat coerces to float64. Integers widen; strings parse.
func coerceFloat(v any) (float64, error) {
	switch tv := v.(type) {
	case float32:
		return float64(tv), nil
	case float64:
		return tv, nil
	case int:
		return float64(tv), nil
	case int32:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, errors.NewTypeMismatchf("cannot parse %q as float", tv)
		}
		return f, nil
	default:
		return 0, errors.NewTypeMismatchf("expected float, got %T", v)
	}
}

// coerceBool coerces to bool. Strings accept true/false/1/0.
func coerceBool(v any) (bool, error) {
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, errors.NewTypeMismatchf("cannot parse %q as boolean", tv)
	default:
		return false, errors.NewTypeMismatchf("expected boolean, got %T", v)
	}
}

// coerceDateTime coerces to time.Time.
func coerceDateTime(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		if t, ok := parseDateTime(tv); ok {
			return t, nil
		}
		return time.Time{}, errors.NewTypeMismatchf("cannot parse %q as datetime", tv)
	default:
		return time.Time{}, errors.NewTypeMismatchf("expected datetime, got %T", v)
	}
}

// coerceMoney coerces to a decimal amount.
func coerceMoney(v any) (decimal.Decimal, error) {
	switch tv := v.(type) {
	case types.Money:
		return tv.Amount, nil
	case decimal.Decimal:
		return tv, nil
	case float32:
		return decimal.NewFromFloat(float64(tv)), nil
	case float64:
		return decimal.NewFromFloat(tv), nil
	case int:
		return decimal.NewFromInt(int64(tv)), nil
	case int64:
		return decimal.NewFromInt(tv), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(tv))
		if err != nil {
			return decimal.Decimal{}, errors.NewTypeMismatchf("cannot parse %q as money", tv)
		}
		return d, nil
	default:
		return decimal.Decimal{}, errors.NewTypeMismatchf("expected money, got %T", v)
	}
}

// coerceID coerces to a record identifier.
func coerceID(v any) (types.Identifier, error) {
	switch tv := v.(type) {
	case types.Identifier:
		return tv, nil
	case types.EntityReference:
		return tv.ID, nil
	case *types.EntityReference:
		if tv == nil {
			return uuid.Nil, errors.NewTypeMismatchf("nil entity reference")
		}
		return tv.ID, nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(tv))
		if err != nil {
			return uuid.Nil, errors.NewTypeMismatchf("cannot parse %q as identifier", tv)
		}
		return id, nil
	default:
		return uuid.Nil, errors.NewTypeMismatchf("expected identifier, got %T", v)
	}
}

// isNull reports whether a (possibly aliased) value is an explicit null.
func isNull(v any) bool {
	inner := types.Unwrap(v)
	if inner == nil {
		return true
	}
	if ref, ok := inner.(*types.EntityReference); ok {
		return ref == nil
	}
	return false
}
