package negotiator

import (
	"fmt"
	"math"
	"strings"
)

const (
	PolicyPercent  = "percent"
	PolicyAbsolute = "absolute"

	DefaultPercent  = 0.10
	DefaultAbsolute = int64(90000)
)

// Band is an inclusive price range around a budget.
type Band struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

func (b Band) Contains(total int64) bool {
	return total >= b.Lower && total <= b.Upper
}

// Direction tells the oracle which way to move a total that missed the band.
func (b Band) Direction(total int64) string {
	switch {
	case total < b.Lower:
		return "raise"
	case total > b.Upper:
		return "lower"
	default:
		return ""
	}
}

// TolerancePolicy turns a budget into its acceptance band.
type TolerancePolicy interface {
	Band(budget int64) Band
	String() string
}

// PercentTolerance accepts budget×(1−p) .. budget×(1+p). The fraction is held
// in basis points, capped at 100%, so bounds are exact integers.
type PercentTolerance struct {
	basisPoints int64
}

func NewPercentTolerance(fraction float64) PercentTolerance {
	switch {
	case fraction < 0 || math.IsNaN(fraction):
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return PercentTolerance{basisPoints: int64(math.Round(fraction * 10000))}
}

// Band rounds both bounds inward. It never overflows: the offset
// floor(budget×p) is computed without forming budget×10000.
func (p PercentTolerance) Band(budget int64) Band {
	if budget < 0 {
		budget = 0
	}
	q, r := budget/10000, budget%10000
	offset := q*p.basisPoints + r*p.basisPoints/10000
	return Band{Lower: budget - offset, Upper: saturatingAdd(budget, offset)}
}

func (p PercentTolerance) String() string {
	return fmt.Sprintf("±%d.%02d%%", p.basisPoints/100, p.basisPoints%100)
}

// AbsoluteTolerance accepts budget−d .. budget+d, floored at zero.
type AbsoluteTolerance struct {
	delta int64
}

func NewAbsoluteTolerance(delta int64) AbsoluteTolerance {
	if delta < 0 {
		delta = 0
	}
	return AbsoluteTolerance{delta: delta}
}

func (a AbsoluteTolerance) Band(budget int64) Band {
	lower := budget - a.delta
	if lower < 0 {
		lower = 0
	}
	return Band{Lower: lower, Upper: saturatingAdd(budget, a.delta)}
}

func saturatingAdd(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}

func (a AbsoluteTolerance) String() string {
	return fmt.Sprintf("±%d", a.delta)
}

// NewTolerancePolicy picks exactly one variant by name.
func NewTolerancePolicy(policy string, percent float64, absolute int64) (TolerancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", PolicyPercent:
		if percent <= 0 {
			percent = DefaultPercent
		}
		return NewPercentTolerance(percent), nil
	case PolicyAbsolute:
		if absolute <= 0 {
			absolute = DefaultAbsolute
		}
		return NewAbsoluteTolerance(absolute), nil
	default:
		return nil, fmt.Errorf("unknown tolerance policy %q", policy)
	}
}
