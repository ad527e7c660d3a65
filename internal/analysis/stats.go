package analysis

import (
	"sort"

	"github.com/shopspring/decimal"
)

var (
	quartile1  = decimal.RequireFromString("0.25")
	quartile2  = decimal.RequireFromString("0.5")
	quartile3  = decimal.RequireFromString("0.75")
	fenceScale = decimal.RequireFromString("1.5")
)

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func mean(values []decimal.Decimal) decimal.NullDecimal {
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(sum(values).Div(decimal.NewFromInt(int64(len(values)))))
}

func median(values []decimal.Decimal) decimal.NullDecimal {
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(quantile(sorted(values), quartile2))
}

func sorted(values []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// quantile returns the p-quantile of an ascending slice by linear
// interpolation between closest ranks: h = (n-1)p, x[floor h] + frac(h)(x[floor h + 1] - x[floor h]).
// The slice must be non-empty.
func quantile(asc []decimal.Decimal, p decimal.Decimal) decimal.Decimal {
	h := decimal.NewFromInt(int64(len(asc) - 1)).Mul(p)
	lower := h.Floor()
	lo := int(lower.IntPart())
	if lo+1 >= len(asc) {
		return asc[len(asc)-1]
	}
	frac := h.Sub(lower)
	return asc[lo].Add(asc[lo+1].Sub(asc[lo]).Mul(frac))
}

// iqrFences returns the lower and upper outlier fences Q1-1.5*IQR and Q3+1.5*IQR.
func iqrFences(values []decimal.Decimal) (lower, upper decimal.Decimal) {
	asc := sorted(values)
	q1 := quantile(asc, quartile1)
	q3 := quantile(asc, quartile3)
	spread := q3.Sub(q1).Mul(fenceScale)
	return q1.Sub(spread), q3.Add(spread)
}
