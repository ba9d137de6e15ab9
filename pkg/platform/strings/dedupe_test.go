package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  Finance  ", "Retail  ", "  Energy"},
			expected: []string{"Finance", "Retail", "Energy"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"Retail", "Finance", "Retail"},
			expected: []string{"Retail", "Finance"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"Finance", "", "  ", "Retail"},
			expected: []string{"Finance", "Retail"},
		},
		{
			name:     "preserves case",
			input:    []string{"Finance", "finance"},
			expected: []string{"Finance", "finance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSortedSet(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		a := SortedSet([]string{"Retail", "Finance", "Healthcare"})
		b := SortedSet([]string{"Healthcare", " Retail", "Finance", "Finance"})
		assert.Equal(t, []string{"Finance", "Healthcare", "Retail"}, a)
		assert.Equal(t, a, b)
	})

	t.Run("blank members collapse to nil", func(t *testing.T) {
		assert.Nil(t, SortedSet([]string{" ", ""}))
	})

	t.Run("does not reorder caller slice", func(t *testing.T) {
		in := []string{"Retail", "Finance"}
		_ = SortedSet(in)
		assert.Equal(t, []string{"Retail", "Finance"}, in)
	})
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "whitespace only", input: "  ", expected: nil},
		{name: "single", input: "Finance", expected: []string{"Finance"}},
		{name: "comma joined unsorted", input: "Retail, Finance,,Retail", expected: []string{"Finance", "Retail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
