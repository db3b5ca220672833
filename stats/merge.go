package stats

import (
	"math"
	"sort"
)

type pair struct {
	v float64
	w float64
}

// valid drops every pair whose value is unknown or whose weight is not a
// positive finite number.
func valid(values []Num, weights []float64) []pair {
	out := make([]pair, 0, len(values))
	for i, v := range values {
		if !v.Valid || i >= len(weights) {
			continue
		}
		w := weights[i]
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			continue
		}
		out = append(out, pair{v: v.V, w: w})
	}
	return out
}

func mean(ps []pair) (float64, float64) {
	var sum, total float64
	for _, p := range ps {
		sum += p.v * p.w
		total += p.w
	}
	return sum / total, total
}

// WeightedMean averages the known values by weight.
func WeightedMean(values []Num, weights []float64) Num {
	ps := valid(values, weights)
	if len(ps) == 0 {
		return Unknown
	}
	m, _ := mean(ps)
	return Known(m)
}

// WeightedStd is the population standard deviation of the known values,
// with weights renormalized over that subset.
func WeightedStd(values []Num, weights []float64) Num {
	ps := valid(values, weights)
	if len(ps) == 0 {
		return Unknown
	}
	m, total := mean(ps)
	var ss float64
	for _, p := range ps {
		d := p.v - m
		ss += p.w * d * d
	}
	return Known(math.Sqrt(ss / total))
}

// WeightedMedian returns the smallest value whose cumulative weight
// strictly exceeds half of the total weight.
func WeightedMedian(values []Num, weights []float64) Num {
	ps := valid(values, weights)
	if len(ps) == 0 {
		return Unknown
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].v < ps[j].v })

	var total float64
	for _, p := range ps {
		total += p.w
	}
	half := total / 2
	var cum float64
	for _, p := range ps {
		cum += p.w
		if cum > half {
			return Known(p.v)
		}
	}
	return Known(ps[len(ps)-1].v)
}

// Equal returns n copies of weight 1, the weighting used when every
// observation counts the same.
func Equal(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// usable reports whether d can take part in a combination.
func (d Dist) usable() bool {
	return d.Mean.Valid && d.N > 0 && !math.IsNaN(d.N) && !math.IsInf(d.N, 0)
}

// Combine pools two batches into one using the exact pooled-variance rule:
//
//	var = (n1*s1² + n2*s2² + n1*(m1-m)² + n2*(m2-m)²) / (n1+n2)
//
// An unknown or empty batch is treated as absent. When neither is usable
// the result is unknown with N = 0. A batch with a known mean but unknown
// std takes part with zero spread, the same seed a first instructor
// sighting gets, so the result's std stays known.
func Combine(a, b Dist) Dist {
	switch {
	case !a.usable() && !b.usable():
		return Dist{Mean: Unknown, Std: Unknown}
	case !a.usable():
		return b.normalized()
	case !b.usable():
		return a.normalized()
	}

	n := a.N + b.N
	m := (a.Mean.V*a.N + b.Mean.V*b.N) / n
	s1 := a.Std.Or(0)
	s2 := b.Std.Or(0)
	da := a.Mean.V - m
	db := b.Mean.V - m
	variance := (a.N*s1*s1 + b.N*s2*s2 + a.N*da*da + b.N*db*db) / n
	if variance < 0 {
		variance = 0
	}
	return Dist{Mean: Known(m), Std: Known(math.Sqrt(variance)), N: n}
}

func (d Dist) normalized() Dist {
	if !d.Std.Valid {
		d.Std = Known(0)
	}
	return d
}

// SumIndependent adds component means and combines their spreads as the
// square root of the summed variances, assuming independent components.
// Components with an unknown mean are skipped; an unknown std contributes
// nothing to the variance.
func SumIndependent(components ...Dist) (Num, Num) {
	var sum, variance float64
	found := false
	for _, c := range components {
		if !c.Mean.Valid {
			continue
		}
		found = true
		sum += c.Mean.V
		if c.Std.Valid {
			variance += c.Std.V * c.Std.V
		}
	}
	if !found {
		return Unknown, Unknown
	}
	return Known(sum), Known(math.Sqrt(variance))
}
