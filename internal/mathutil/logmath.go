package mathutil

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogZero represents log(0). Impossible events carry exactly this value so that
// they never contribute probability mass.
var LogZero = math.Inf(-1)

// IsLogZero reports whether v is log(0).
func IsLogZero(v float64) bool {
	return math.IsInf(v, -1)
}

// SafeLog returns log(p), mapping p <= 0 to LogZero instead of NaN.
func SafeLog(p float64) float64 {
	if p <= 0 {
		return LogZero
	}
	return math.Log(p)
}

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if IsLogZero(b) {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(sum(exp(s))). An empty slice or a slice of LogZero
// values yields LogZero.
func LogSumExp(s []float64) float64 {
	if len(s) == 0 {
		return LogZero
	}
	if IsLogZero(floats.Max(s)) {
		return LogZero
	}
	return floats.LogSumExp(s)
}
