package resolver

import (
	"strings"

	"pcbuild-service/internal/models"
)

// DefaultCategoryKeywords are the title fragments that identify a product's
// category in a kaspi-style catalog.
var DefaultCategoryKeywords = map[models.Category][]string{
	models.CategoryCPU:         {"ryzen", "intel core", "core i3", "core i5", "core i7", "core i9", "core ultra", "athlon", "xeon", "threadripper", "processor", "процессор"},
	models.CategoryGPU:         {"geforce", "rtx", "gtx", "radeon", "rx ", "intel arc", "video card", "graphics card", "видеокарта"},
	models.CategoryMotherboard: {"motherboard", "материнская", "b450", "b550", "a520", "x570", "a620", "b650", "x670", "h610", "b660", "b760", "z690", "z790"},
	models.CategoryRAM:         {"ddr4", "ddr5", "dimm", "memory", "ram", "оперативная"},
	models.CategoryPSU:         {"power supply", "psu", "блок питания", "80+", "80 plus"},
	models.CategoryCPUCooler:   {"cpu cooler", "cooler", "кулер", "tower", "aio", "liquid"},
	models.CategoryCaseFan:     {"case fan", "fan", "вентилятор"},
	models.CategoryCase:        {"case", "tower", "chassis", "корпус"},
}

// CategoryFilter narrows candidates to titles carrying a keyword of the
// requested category.
type CategoryFilter struct {
	keywords map[models.Category][]string
}

// NewCategoryFilter builds a filter from keywords, falling back to the
// defaults for categories the map does not mention.
func NewCategoryFilter(keywords map[models.Category][]string) *CategoryFilter {
	merged := make(map[models.Category][]string, len(DefaultCategoryKeywords))
	for c, kws := range DefaultCategoryKeywords {
		merged[c] = kws
	}
	for c, kws := range keywords {
		lowered := make([]string, len(kws))
		for i, kw := range kws {
			lowered[i] = strings.ToLower(kw)
		}
		merged[c] = lowered
	}
	return &CategoryFilter{keywords: merged}
}

// Matches reports whether title looks like a product of category.
func (f *CategoryFilter) Matches(category models.Category, title string) bool {
	lowered := strings.ToLower(title)
	for _, kw := range f.keywords[category] {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Filter returns pointers to the candidates in category, in catalog order.
func (f *CategoryFilter) Filter(category models.Category, candidates []models.Product) []*models.Product {
	out := make([]*models.Product, 0, len(candidates)/4)
	for i := range candidates {
		if f.Matches(category, candidates[i].Title) {
			out = append(out, &candidates[i])
		}
	}
	return out
}

// Coverage counts products per category. A product may count for several.
func (f *CategoryFilter) Coverage(products []models.Product) map[models.Category]int {
	coverage := make(map[models.Category]int, len(models.RequiredCategories))
	for _, c := range models.RequiredCategories {
		coverage[c] = 0
	}
	for i := range products {
		for _, c := range models.RequiredCategories {
			if f.Matches(c, products[i].Title) {
				coverage[c]++
			}
		}
	}
	return coverage
}
