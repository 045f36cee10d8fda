// Package resolver maps free-text component names onto catalog products.
package resolver

import (
	"math"

	"pcbuild-service/internal/models"
)

// DefaultThreshold is the minimum score a best match must reach.
const DefaultThreshold = 0.5

// Match is a resolved product and the score it won with.
type Match struct {
	Product *models.Product
	Score   float64
}

// Resolver is stateless and safe for concurrent use.
type Resolver struct {
	metric    Metric
	threshold float64
	filter    *CategoryFilter
}

type Option func(*Resolver)

// WithCategoryFilter restricts scoring to candidates the filter accepts.
func WithCategoryFilter(f *CategoryFilter) Option {
	return func(r *Resolver) {
		r.filter = f
	}
}

// New returns a resolver. A nil metric selects Sørensen–Dice; a threshold
// outside [0, 1] selects DefaultThreshold. Zero accepts the best candidate
// whatever its score.
func New(metric Metric, threshold float64, opts ...Option) *Resolver {
	if metric == nil {
		metric = NewSorensenDice()
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	r := &Resolver{metric: metric, threshold: threshold}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the candidate whose title is most similar to query. The
// first maximal candidate in slice order wins ties. ok is false when there
// are no candidates or the best score is below the threshold. The returned
// product points into candidates.
func (r *Resolver) Resolve(query string, category models.Category, candidates []models.Product) (Match, bool) {
	if r.filter != nil {
		return r.best(query, r.filter.Filter(category, candidates))
	}

	var best Match
	found := false
	for i := range candidates {
		score := Similarity(r.metric, query, candidates[i].Title)
		if !found || score > best.Score {
			best = Match{Product: &candidates[i], Score: score}
			found = true
		}
	}
	return r.accept(best, found)
}

func (r *Resolver) best(query string, candidates []*models.Product) (Match, bool) {
	var best Match
	found := false
	for _, p := range candidates {
		score := Similarity(r.metric, query, p.Title)
		if !found || score > best.Score {
			best = Match{Product: p, Score: score}
			found = true
		}
	}
	return r.accept(best, found)
}

func (r *Resolver) accept(best Match, found bool) (Match, bool) {
	if !found || best.Score < r.threshold {
		return Match{}, false
	}
	return best, true
}
