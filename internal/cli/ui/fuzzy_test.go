package ui

import (
	"reflect"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"Order", "Ordr", 1},
		{"VipOrder", "BulkOrder", 4},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := LevenshteinDistance(tt.a, tt.b); got != tt.expected {
				t.Errorf("LevenshteinDistance(%q, %q) = %d; want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"Customer", "Order", "OrderLine", "VipOrder", "Orders"}

	tests := []struct {
		name     string
		target   string
		limit    int
		expected []string
	}{
		{"closest first", "ordr", 3, []string{"Order", "Orders"}},
		{"case insensitive", "ORDER", 1, []string{"Order"}},
		{"no match", "Invoice", 3, []string{}},
		{"zero limit", "Order", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suggest(tt.target, candidates, tt.limit); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Suggest(%q) = %v; want %v", tt.target, got, tt.expected)
			}
		})
	}
}
