package resolver

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Metric scores two strings in [0, 1], 1 meaning identical. Any
// strutil.StringMetric satisfies it.
type Metric interface {
	Compare(a, b string) float64
}

const (
	MetricSorensenDice = "sorensen-dice"
	MetricLevenshtein  = "levenshtein"
	MetricJaroWinkler  = "jaro-winkler"
)

// NewSorensenDice is the default metric: Dice coefficient over character
// bigrams.
func NewSorensenDice() Metric {
	m := metrics.NewSorensenDice()
	m.CaseSensitive = false
	m.NgramSize = 2
	return m
}

// MetricByName maps a configured metric name to its implementation.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricSorensenDice, "dice":
		return NewSorensenDice(), nil
	case MetricLevenshtein:
		m := metrics.NewLevenshtein()
		m.CaseSensitive = false
		return m, nil
	case MetricJaroWinkler:
		m := metrics.NewJaroWinkler()
		m.CaseSensitive = false
		return m, nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", name)
	}
}

// normalize lowercases and drops whitespace so spacing differences such as
// "RTX3060" against "RTX 3060" do not cost score.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Similarity compares two names after normalization. Empty input scores 0.
func Similarity(m Metric, a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return strutil.Similarity(na, nb, m)
}
