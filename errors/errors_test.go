package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrapPreservesKind(t *testing.T) {
	wrapped := Wrap(ErrTypeMismatch, "comparing int64 to string")

	assert.Contains(t, wrapped.Error(), "comparing int64 to string")
	assert.True(t, Is(wrapped, ErrTypeMismatch))
	assert.False(t, Is(wrapped, ErrParse))
}

func TestSentinelPredicates(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{
			name:      "entity not registered direct",
			err:       ErrEntityNotRegistered,
			predicate: IsEntityNotRegistered,
			expected:  true,
		},
		{
			name:      "entity not registered wrapped",
			err:       Wrap(ErrEntityNotRegistered, "entity contact"),
			predicate: IsEntityNotRegistered,
			expected:  true,
		},
		{
			name:      "attribute not found formatted",
			err:       NewAttributeNotFoundf("attribute %q on entity %q", "revenue", "account"),
			predicate: IsAttributeNotFound,
			expected:  true,
		},
		{
			name:      "type mismatch formatted",
			err:       NewTypeMismatchf("operator %s on %s attribute", "like", "Integer"),
			predicate: IsTypeMismatch,
			expected:  true,
		},
		{
			name:      "hierarchy attribute missing wrapped",
			err:       Wrap(ErrHierarchyAttributeMissing, "entity account"),
			predicate: IsHierarchyAttributeMissing,
			expected:  true,
		},
		{
			name:      "wrong kind",
			err:       ErrParse,
			predicate: IsTypeMismatch,
			expected:  false,
		},
		{
			name:      "nil error",
			err:       nil,
			predicate: IsNotFound,
			expected:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.predicate(tc.err))
		})
	}
}

func TestFormattedConstructorsKeepMessage(t *testing.T) {
	err := NewEntityNotRegisteredf("entity %q", "account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entity "account"`)
	assert.True(t, Is(err, ErrEntityNotRegistered))

	err = NewNotFoundf("record %s", "abc")
	assert.Contains(t, err.Error(), "record abc")
	assert.True(t, IsNotFound(err))
}
