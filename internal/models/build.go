// internal/models/build.go
package models

// ProposedBuild is the oracle's raw answer: one free-text component name per
// category. It is never trusted until every entry has been resolved.
type ProposedBuild map[Category]string

// ResolvedComponent ties a category to the catalog product that matched the
// proposed name, along with the similarity score of that match. Price is the
// product price the build is totalled with.
type ResolvedComponent struct {
	Product *Product `json:"product"`
	Score   float64  `json:"score"`
	Price   int64    `json:"price"`
}

// ResolvedBuild holds the categories that resolved to catalog products.
type ResolvedBuild map[Category]ResolvedComponent

// Complete reports whether every required category resolved.
func (b ResolvedBuild) Complete() bool {
	if len(b) != len(RequiredCategories) {
		return false
	}
	for _, c := range RequiredCategories {
		rc, ok := b[c]
		if !ok || rc.Product == nil {
			return false
		}
	}
	return true
}

// Total sums the component prices of the resolved products.
func (b ResolvedBuild) Total() int64 {
	var total int64
	for _, rc := range b {
		if rc.Product != nil {
			total += rc.Price
		}
	}
	return total
}
