package analysis

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	asc := sorted(decs("10", "12", "12", "13", "12", "11", "100"))

	tests := []struct {
		p    string
		want string
	}{
		{"0", "10"},
		{"0.25", "11.5"},
		{"0.5", "12"},
		{"0.75", "12.5"},
		{"1", "100"},
	}

	for _, tt := range tests {
		t.Run(tt.p, func(t *testing.T) {
			if got := quantile(asc, dec(tt.p)); !got.Equal(dec(tt.want)) {
				t.Errorf("quantile(%s) = %s, want %s", tt.p, got, tt.want)
			}
		})
	}
}

func TestIQRFences(t *testing.T) {
	lower, upper := iqrFences(decs("10", "12", "12", "13", "12", "11", "100"))
	if !lower.Equal(dec("10")) || !upper.Equal(dec("14")) {
		t.Errorf("fences = (%s, %s), want (10, 14)", lower, upper)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []decimal.Decimal
		want   string
		valid  bool
	}{
		{"empty", nil, "", false},
		{"single", decs("7"), "7", true},
		{"odd", decs("3", "1", "2"), "2", true},
		{"even", decs("4", "1", "3", "2"), "2.5", true},
		{"cents", decs("0.01", "0.02"), "0.015", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := median(tt.values)
			if got.Valid != tt.valid {
				t.Fatalf("median valid = %v, want %v", got.Valid, tt.valid)
			}
			if tt.valid && !got.Decimal.Equal(dec(tt.want)) {
				t.Errorf("median = %s, want %s", got.Decimal, tt.want)
			}
		})
	}
}

func TestMean_Empty(t *testing.T) {
	if got := mean(nil); got.Valid {
		t.Errorf("mean(nil) = %s, want invalid", got.Decimal)
	}
}

func TestSortedDoesNotMutateInput(t *testing.T) {
	in := decs("3", "1", "2")
	_ = sorted(in)
	if !in[0].Equal(dec("3")) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestRound2_HalfToEven(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2.345", "2.34"},
		{"2.355", "2.36"},
		{"-1.005", "-1"},
		{"15", "15"},
	}
	for _, tt := range tests {
		if got := round2(dec(tt.in)); !got.Equal(dec(tt.want)) {
			t.Errorf("round2(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
