package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Uses threshold-based early exit to skip expensive exp/log1p when the
// smaller value contributes less than float64 precision (exp(-36) ≈ 2.3e-16).
func LogAdd(a, b float64) float64 {
	if a > b {
		if b <= LogZero {
			return a
		}
		d := b - a
		if d < -36.0 {
			return a
		}
		return a + math.Log1p(math.Exp(d))
	}
	if a <= LogZero {
		return b
	}
	d := a - b
	if d < -36.0 {
		return b
	}
	return b + math.Log1p(math.Exp(d))
}

// LogSumExp returns log(sum(exp(x))) over xs, or LogZero for an empty slice.
func LogSumExp(xs []float64) float64 {
	best := LogZero
	for _, x := range xs {
		if x > best {
			best = x
		}
	}
	if best <= LogZero {
		return LogZero
	}
	sum := 0.0
	for _, x := range xs {
		if x > LogZero {
			sum += math.Exp(x - best)
		}
	}
	return best + math.Log(sum)
}

// SafeLog returns log(p), mapping p <= 0 to LogZero.
func SafeLog(p float64) float64 {
	if p <= 0 {
		return LogZero
	}
	return math.Log(p)
}
