package analytics

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percent is count/total*100 rounded half away from zero to one decimal.
// total == 0 yields 0.
func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(count)).Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 1).Float64()
	return v
}

// mean is sum/n rounded to two decimals. n == 0 yields zero.
func mean(sum, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(sum)).DivRound(decimal.NewFromInt(int64(n)), 2)
}

func toFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// apportion converts counts into one-decimal percentages that sum to exactly
// 100.0 (largest remainder method on tenths of a percent). Whenever plain
// per-bucket rounding already sums to 100.0 the result is identical to it;
// otherwise the leftover tenths go to the largest remainders, ties to the
// lower index. Every value stays within 0.1 of its exact share.
func apportion(counts []int) []float64 {
	out := make([]float64, len(counts))
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return out
	}

	const tenths = 1000
	type part struct{ idx, units, rem int }
	parts := make([]part, len(counts))
	assigned := 0
	for i, c := range counts {
		units := c * tenths / total
		parts[i] = part{idx: i, units: units, rem: c*tenths - units*total}
		assigned += units
	}

	order := slices.Clone(parts)
	slices.SortStableFunc(order, func(a, b part) int {
		if a.rem != b.rem {
			return cmp.Compare(b.rem, a.rem)
		}
		return cmp.Compare(a.idx, b.idx)
	})
	for i := 0; i < tenths-assigned; i++ {
		parts[order[i].idx].units++
	}

	for i, p := range parts {
		out[i] = float64(p.units) / 10
	}
	return out
}
