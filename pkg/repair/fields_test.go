package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickString(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]any
		keys     []string
		expected string
	}{
		{
			name:     "prefers earlier keys",
			record:   map[string]any{"component_code": "A-1", "编号": "B-2"},
			keys:     componentCodeKeys,
			expected: "A-1",
		},
		{
			name:     "falls back to chinese header",
			record:   map[string]any{"编号": "B-2"},
			keys:     componentCodeKeys,
			expected: "B-2",
		},
		{
			name:     "skips empty values",
			record:   map[string]any{"component_code": "  ", "code": "C-3"},
			keys:     componentCodeKeys,
			expected: "C-3",
		},
		{
			name:     "renders numeric legacy ids without decimals",
			record:   map[string]any{"id": float64(4821)},
			keys:     legacyIDKeys,
			expected: "4821",
		},
		{
			name:     "nothing matches",
			record:   map[string]any{"other": "x"},
			keys:     componentCodeKeys,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pickString(tt.record, tt.keys))
		})
	}
}

func TestPickInt(t *testing.T) {
	v := pickInt(map[string]any{"component_count": float64(7)}, componentCountKeys)
	require.NotNil(t, v)
	assert.Equal(t, 7, *v)

	v = pickInt(map[string]any{"板件数量": "12"}, componentCountKeys)
	require.NotNil(t, v)
	assert.Equal(t, 12, *v)

	assert.Nil(t, pickInt(map[string]any{"component_count": "not a number"}, componentCountKeys))
	assert.Nil(t, pickInt(map[string]any{}, componentCountKeys))
}
