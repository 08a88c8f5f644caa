package stats

import "math"

// NealProbability returns Pr[X >= p] where X counts the overlap of two random
// subsets of sizes di and dj drawn from a universe of a elements. An empty
// overlap is never significant and yields 1.
//
// When p sits in the upper half of [0, min(di,dj)] the upper tail is summed
// directly; otherwise the complement of the lower tail is used, which keeps
// the number of terms small.
func (t *LogFactorialTable) NealProbability(a, di, dj, p int) float64 {
	if p <= 0 {
		return 1.0
	}
	dmin, dmax := di, dj
	if dmin > dmax {
		dmin, dmax = dmax, dmin
	}
	if p > dmin {
		return 0.0
	}

	var prob float64
	if p > dmin/2 {
		logs := make([]float64, 0, dmin-p+1)
		for x := p; x <= dmin; x++ {
			logs = append(logs, t.logOverlap(a, dmin, dmax, x))
		}
		prob = math.Exp(LogSumExp(logs))
	} else {
		begin := di + dj - a
		if begin < 0 {
			begin = 0
		}
		logs := make([]float64, 0, p)
		for x := begin; x < p; x++ {
			logs = append(logs, t.logOverlap(a, dmin, dmax, x))
		}
		prob = 1.0 - math.Exp(LogSumExp(logs))
	}
	return clamp01(prob)
}

// logOverlap is ln Pr[X = x] for the hypergeometric overlap distribution.
func (t *LogFactorialTable) logOverlap(a, dmin, dmax, x int) float64 {
	return t.LogChoose(dmin, x) + t.LogChoose(a-dmin, dmax-x) - t.LogChoose(a, dmax)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1.0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
