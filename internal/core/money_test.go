package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"dot separator", "12.34", 1234, false},
		{"comma separator", "12,34", 1234, false},
		{"integer", "12", 1200, false},
		{"single fractional digit", "12.5", 1250, false},
		{"third digit rounds down", "12.344", 1234, false},
		{"third digit rounds up", "12.345", 1235, false},
		{"leading dot", ".50", 50, false},
		{"whitespace trimmed", " 7.00 ", 700, false},
		{"empty", "", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-5.00", 0, true},
		{"plus sign", "+5.00", 0, true},
		{"letters", "abc", 0, true},
		{"two separators", "1.2.3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDecimalToCents(%q) expected error, got %d", tt.input, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error should wrap ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{100, "1.00"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
