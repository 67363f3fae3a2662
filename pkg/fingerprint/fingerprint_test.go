package fingerprint

import (
	"math"
	"testing"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "1", Label: "ham", Text: "see you at lunch"},
		{ID: "2", Label: "spam", Text: "win a free prize"},
	}
}

func TestComputeDeterministic(t *testing.T) {
	params := map[string]any{"seed": 42, "alpha": 1.0, "folds": 10}

	a, err := Compute(sampleDocs(), params)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(sampleDocs(), map[string]any{"folds": 10, "alpha": 1.0, "seed": 42})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if a != b {
		t.Errorf("fingerprint depends on map order: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestComputeSensitivity(t *testing.T) {
	base, _ := Compute(sampleDocs(), map[string]any{"seed": 42})

	tests := []struct {
		name   string
		docs   []Document
		params map[string]any
	}{
		{"different seed", sampleDocs(), map[string]any{"seed": 43}},
		{"different label", []Document{
			{ID: "1", Label: "spam", Text: "see you at lunch"},
			{ID: "2", Label: "spam", Text: "win a free prize"},
		}, map[string]any{"seed": 42}},
		{"swapped order", []Document{sampleDocs()[1], sampleDocs()[0]}, map[string]any{"seed": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.docs, tt.params)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got == base {
				t.Error("fingerprint did not change")
			}
		})
	}
}

func TestFloatNormalization(t *testing.T) {
	a, _ := Compute(nil, map[string]any{"alpha": 0.1 + 0.2})
	b, _ := Compute(nil, map[string]any{"alpha": 0.3})
	if a != b {
		t.Error("floats equal to 9 decimals should fingerprint identically")
	}

	if _, err := Compute(nil, map[string]any{"alpha": math.NaN()}); err == nil {
		t.Error("expected error for NaN parameter")
	}
	if _, err := Compute(nil, map[string]any{"nested": map[string]any{"x": math.Inf(1)}}); err == nil {
		t.Error("expected error for nested Inf parameter")
	}
}

func TestF9(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.23456789012345, "1.234567890"},
		{0.5, "0.500000000"},
		{-2, "-2.000000000"},
	}
	for _, tt := range tests {
		if got := F9(tt.in); got != tt.want {
			t.Errorf("F9(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func FuzzRound9(f *testing.F) {
	f.Add(float64(1.234567890123))
	f.Add(float64(0.0))
	f.Add(float64(-999.999999999))
	f.Add(float64(1e10))

	f.Fuzz(func(t *testing.T, value float64) {
		_ = F9(value)

		rounded := Round9(value)
		if math.IsNaN(value) {
			return
		}
		if again := Round9(rounded); again != rounded {
			t.Errorf("Round9 not idempotent: %.9f != %.9f", rounded, again)
		}
	})
}
