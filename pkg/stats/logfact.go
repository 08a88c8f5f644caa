// Package stats holds the log-space combinatorics behind the neighbor-overlap
// significance test.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogFactorialTable memoizes ln(n!) and grows on demand. It is not safe for
// concurrent use; give each worker its own table.
type LogFactorialTable struct {
	values []float64
}

// NewLogFactorialTable creates a table pre-filled up to n.
func NewLogFactorialTable(n int) *LogFactorialTable {
	t := &LogFactorialTable{values: []float64{0}}
	if n > 0 {
		t.fill(n)
	}
	return t
}

func (t *LogFactorialTable) fill(n int) {
	for i := len(t.values); i <= n; i++ {
		t.values = append(t.values, t.values[i-1]+math.Log(float64(i)))
	}
}

// Size returns how many entries are memoized.
func (t *LogFactorialTable) Size() int { return len(t.values) }

// LogFact returns ln(n!). Negative n yields -Inf.
func (t *LogFactorialTable) LogFact(n int) float64 {
	if n < 0 {
		return math.Inf(-1)
	}
	if n >= len(t.values) {
		t.fill(n)
	}
	return t.values[n]
}

// LogChoose returns ln(C(n, k)), or -Inf when k is outside [0, n].
func (t *LogFactorialTable) LogChoose(n, k int) float64 {
	if k < 0 || n < 0 || k > n {
		return math.Inf(-1)
	}
	return t.LogFact(n) - t.LogFact(k) - t.LogFact(n-k)
}

// LogSumExp returns ln(Σ exp(x)) without overflow. Empty input yields -Inf.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(xs)
}
