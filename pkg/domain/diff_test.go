package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		old      Tree
		new      Tree
		wantDiff *TreeDiff // nil means no change expected
	}{
		{
			name:     "Initial Load (Old is Nil)",
			old:      nil,
			new:      Tree{"layers": []any{"bg"}},
			wantDiff: &TreeDiff{Changed: map[string]any{"layers": []any{"bg"}}},
		},
		{
			name:     "No Changes",
			old:      Tree{"a": 1, "b": map[string]any{"c": true}},
			new:      Tree{"a": 1, "b": map[string]any{"c": true}},
			wantDiff: nil,
		},
		{
			name:     "Modified Slice",
			old:      Tree{"a": 1, "b": 2},
			new:      Tree{"a": 1, "b": 3},
			wantDiff: &TreeDiff{Changed: map[string]any{"b": 3}},
		},
		{
			name:     "Removed Slice",
			old:      Tree{"a": 1, "b": 2},
			new:      Tree{"a": 1},
			wantDiff: &TreeDiff{Removed: []string{"b"}},
		},
		{
			name:     "Numeric Kinds Compare By Value",
			old:      Tree{"zoom": 2},
			new:      Tree{"zoom": 2.0},
			wantDiff: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			assert.Equal(t, tt.wantDiff, got)
		})
	}
}

func TestDiff_Keys(t *testing.T) {
	d := Diff(Tree{"a": 1, "z": 1}, Tree{"a": 2, "m": 1})
	require.NotNil(t, d)
	assert.Equal(t, []string{"a", "m", "z"}, d.Keys())

	var empty *TreeDiff
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, empty.Keys())
}

func TestDiff_JSONOmitsEmptyParts(t *testing.T) {
	d := Diff(Tree{"a": 1}, Tree{"a": 2})
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"changed":{"a":2}}`, string(data))
}
