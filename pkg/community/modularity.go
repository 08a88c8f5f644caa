package community

import "sort"

// DegreeSums returns the summed row and column degrees of every label.
func DegreeSums(g *Graph, labels Labels) (rowSums, colSums map[int]float64) {
	rowSums = make(map[int]float64)
	colSums = make(map[int]float64)
	for i, l := range labels.Rows {
		if i < len(g.RowDegrees) {
			rowSums[l] += g.RowDegrees[i]
		}
	}
	for j, l := range labels.Cols {
		if j < len(g.ColDegrees) {
			colSums[l] += g.ColDegrees[j]
		}
	}
	return rowSums, colSums
}

// intraWeights sums edge weights whose endpoints share a label, per label.
func intraWeights(g *Graph, labels Labels) map[int]float64 {
	inner := make(map[int]float64)
	m := g.Matrix
	for i, l := range labels.Rows {
		for _, j := range m.NeighborsOfRow(i) {
			if j < len(labels.Cols) && labels.Cols[j] == l {
				inner[l] += m.Get(i, j)
			}
		}
	}
	return inner
}

func sortedLabelKeys(sets ...map[int]float64) []int {
	seen := make(map[int]struct{})
	for _, s := range sets {
		for k := range s {
			seen[k] = struct{}{}
		}
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Modularity returns Q = (1/m)[Σ same-label w − Σ_l rowDeg(l)·colDeg(l)/m].
// A graph without weight has modularity 0.
func Modularity(g *Graph, labels Labels) float64 {
	if g.Sum == 0 {
		return 0
	}
	rowSums, colSums := DegreeSums(g, labels)
	return modularityFrom(g, labels, rowSums, colSums)
}

func modularityFrom(g *Graph, labels Labels, rowSums, colSums map[int]float64) float64 {
	if g.Sum == 0 {
		return 0
	}
	var q float64
	inner := intraWeights(g, labels)
	for _, l := range sortedLabelKeys(inner) {
		q += inner[l]
	}
	for _, l := range sortedLabelKeys(rowSums) {
		q -= rowSums[l] * colSums[l] / g.Sum
	}
	return q / g.Sum
}

// ContributionMap splits Q by label. The values sum to Modularity.
func ContributionMap(g *Graph, labels Labels) map[int]float64 {
	contrib := make(map[int]float64)
	if g.Sum == 0 {
		return contrib
	}
	rowSums, colSums := DegreeSums(g, labels)
	inner := intraWeights(g, labels)
	for _, l := range sortedLabelKeys(rowSums, colSums, inner) {
		contrib[l] = inner[l]/g.Sum - rowSums[l]*colSums[l]/(g.Sum*g.Sum)
	}
	return contrib
}
