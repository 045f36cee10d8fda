// internal/workers/build/generate-build/models.go
package generatebuild

type Input struct {
	Budget float64 `json:"budget"`
}

type Output struct {
	BuildID          string                     `json:"buildId"`
	ChosenComponents map[string]string          `json:"chosenComponents"`
	ResolvedProducts map[string]ResolvedProduct `json:"resolvedProducts"`
	TotalPrice       int64                      `json:"totalPrice"`
	BudgetDifference int64                      `json:"budgetDifference"`
	Attempts         int                        `json:"attempts"`
	Band             Band                       `json:"band"`
}

type ResolvedProduct struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     int64   `json:"price"`
	StoreLink string  `json:"storeLink,omitempty"`
	Score     float64 `json:"score"`
}

type Band struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}
