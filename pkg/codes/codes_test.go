package codes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: "",
		},
		{
			name:     "trims and uppercases",
			input:    "  abc-123  ",
			expected: "ABC-123",
		},
		{
			name:     "bare 13 digits gets Q appended",
			input:    "2025091200431",
			expected: "2025091200431Q",
		},
		{
			name:     "13 digits with wrong trailing letter forced to Q",
			input:    "2025091200431A",
			expected: "2025091200431Q",
		},
		{
			name:     "13 digits with lowercase q",
			input:    "2025091200431q",
			expected: "2025091200431Q",
		},
		{
			name:     "13 digits with correct Q unchanged",
			input:    "2025091200431Q",
			expected: "2025091200431Q",
		},
		{
			name:     "12 digits untouched",
			input:    "202509120043",
			expected: "202509120043",
		},
		{
			name:     "14 digits untouched",
			input:    "20250912004311",
			expected: "20250912004311",
		},
		{
			name:     "13 digits with two trailing letters untouched",
			input:    "2025091200431QX",
			expected: "2025091200431QX",
		},
		{
			name:     "13 digits with trailing symbol untouched",
			input:    "2025091200431-",
			expected: "2025091200431-",
		},
		{
			name:     "package number untouched besides casing",
			input:    "pkg-20250912-001",
			expected: "PKG-20250912-001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"2025091200431", "2025091200431a", " abc ", "PKG-001", ""}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trims and uppercases",
			input:    "  pkg-001 ",
			expected: "PKG-001",
		},
		{
			name:     "13-digit number gets no check letter",
			input:    "2025091200431",
			expected: "2025091200431",
		},
		{
			name:     "13 digits with a trailing letter kept as is",
			input:    "2025091200431a",
			expected: "2025091200431A",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.input))
		})
	}
}

func TestIsDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "empty",
			input:    "",
			expected: false,
		},
		{
			name:     "short numeric legacy id",
			input:    "4821",
			expected: false,
		},
		{
			name:     "long numeric string is still legacy",
			input:    "1234567890123456789",
			expected: false,
		},
		{
			name:     "uuid",
			input:    "8c2f7a1e-90b4-4d6e-a1c2-3f5e7d9b0a12",
			expected: true,
		},
		{
			name:     "cloud doc id",
			input:    "a1b2c3d4e5f6a7b8c9d0",
			expected: true,
		},
		{
			name:     "short alphanumeric",
			input:    "abc123",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDocumentID(tt.input))
		})
	}
}

func TestCaseVariants(t *testing.T) {
	assert.Equal(t, []string{"Pkg-01", "PKG-01", "pkg-01"}, CaseVariants("Pkg-01"))
	assert.Equal(t, []string{"PKG-01", "pkg-01"}, CaseVariants("PKG-01"))
	assert.Equal(t, []string{"1234"}, CaseVariants("1234"))
}

func TestFindByCaseVariants(t *testing.T) {
	t.Run("returns first hit and stops", func(t *testing.T) {
		var tried []string
		result, err := FindByCaseVariants("Pkg-01", func(v string) (*string, error) {
			tried = append(tried, v)
			if v == "PKG-01" {
				s := "found"
				return &s, nil
			}
			return nil, nil
		})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "found", *result)
		assert.Equal(t, []string{"Pkg-01", "PKG-01"}, tried)
	})

	t.Run("not found after all variants", func(t *testing.T) {
		result, err := FindByCaseVariants("Pkg-01", func(string) (*string, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("propagates lookup error", func(t *testing.T) {
		boom := errors.New("db down")
		result, err := FindByCaseVariants("Pkg-01", func(string) (*string, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)
		assert.Nil(t, result)
	})
}
