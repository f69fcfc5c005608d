package mathutil

import (
	"math"
	"strconv"
	"strings"
)

// PrecisionRound rounds half away from zero to the given number of decimals.
// The value is shifted by rewriting the decimal exponent of its shortest
// round-trip representation, so 1.005 rounds to 1.01 instead of 1.00.
func PrecisionRound(value float64, decimals int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value == 0 {
		return value
	}
	shifted := shiftDecimal(value, decimals)
	if math.IsInf(shifted, 0) {
		return value
	}
	return shiftDecimal(math.Round(shifted), -decimals)
}

func shiftDecimal(v float64, places int) float64 {
	if v == 0 || places == 0 {
		return v
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	e, err := strconv.Atoi(exp)
	if err != nil {
		return v * math.Pow10(places)
	}
	f, err := strconv.ParseFloat(mant+"e"+strconv.Itoa(e+places), 64)
	if err != nil {
		return v * math.Pow10(places)
	}
	return f
}

// NumbersComparator orders numbers ascending with nil values last.
func NumbersComparator(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// Quantile computes the p-th quantile (0 <= p <= 1) of an ascending slice
// using linear interpolation between order statistics (R-7).
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	return sorted[lower] + (sorted[upper]-sorted[lower])*(idx-float64(lower))
}

// Mean is the arithmetic mean of values; NaN when empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
