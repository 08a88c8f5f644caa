package propagation

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// CommunityResult holds community-level and per-node scores
type CommunityResult struct {
	Communities []float64
	Nodes       []float64 // score per node via its community; 0 when unknown
	Iterations  int
	Converged   bool
	Residual    float64
}

// Community propagates labels over a square k x k community graph. A
// community's seed score is the mean training label of its member nodes;
// communities with a positive seed are clamped to it before every sweep.
// membership maps node index to community, negative meaning unknown. agg is
// not modified.
func Community(agg *matrix.Matrix[float64], membership []int, train map[int]float64, opts Options) (*CommunityResult, error) {
	defaults := DefaultCommunityOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if agg.RowCap() != agg.ColCap() {
		return nil, fmt.Errorf("community graph must be square, got %dx%d", agg.RowCap(), agg.ColCap())
	}
	logger := logging.OrNop(opts.Logger).With(logging.Component("community_propagation"))

	k := agg.RowCap()
	seed := make([]float64, k)
	size := make([]int, k)
	for node, v := range train {
		if node < 0 || node >= len(membership) {
			continue
		}
		c := membership[node]
		if c < 0 || c >= k {
			continue
		}
		seed[c] += v
		size[c]++
	}
	clamped := make([]bool, k)
	for c := range seed {
		if size[c] > 0 {
			seed[c] /= float64(size[c])
		}
		clamped[c] = seed[c] > 0
	}

	norm := agg.Clone()
	if opts.LogWeights {
		LogTransform(norm)
	}
	RowColumnNormalize(norm)

	labels := append([]float64(nil), seed...)
	next := make([]float64, k)
	threshold := opts.Tolerance * float64(k)
	result := &CommunityResult{}

	for it := 1; it <= opts.MaxIterations; it++ {
		for c, ok := range clamped {
			if ok {
				labels[c] = seed[c]
			}
		}
		prev := append([]float64(nil), next...)
		for j := range next {
			var sum float64
			for _, i := range norm.ColList(j) {
				sum += labels[i] * norm.Get(i, j)
			}
			next[j] = sum
		}
		copy(labels, next)

		result.Iterations = it
		result.Residual = floats.Distance(prev, next, 1)
		logger.Debug("sweep complete", logging.Iteration(it), logging.Residual(result.Residual))
		if result.Residual < threshold {
			result.Converged = true
			break
		}
	}
	if !result.Converged {
		logger.Warn("iteration cap reached before convergence", logging.Iteration(result.Iterations))
	}

	result.Communities = labels
	result.Nodes = make([]float64, len(membership))
	for node, c := range membership {
		if c >= 0 && c < k {
			result.Nodes[node] = labels[c]
		}
	}
	logger.Info("community propagation finished",
		logging.Iteration(result.Iterations),
		logging.Residual(result.Residual),
		logging.Count(k))
	return result, nil
}
