// internal/models/category.go
package models

// Category is one of the fixed component slots of a build.
type Category string

const (
	CategoryCPU         Category = "CPU"
	CategoryGPU         Category = "GPU"
	CategoryMotherboard Category = "Motherboard"
	CategoryRAM         Category = "RAM"
	CategoryPSU         Category = "PSU"
	CategoryCPUCooler   Category = "CPU-Cooler"
	CategoryCaseFan     Category = "Case-Fan"
	CategoryCase        Category = "Case"
)

// RequiredCategories lists every slot an accepted build must fill, in the
// order they are presented to the oracle and reported back to callers.
var RequiredCategories = []Category{
	CategoryCPU,
	CategoryGPU,
	CategoryMotherboard,
	CategoryRAM,
	CategoryPSU,
	CategoryCPUCooler,
	CategoryCaseFan,
	CategoryCase,
}

// Valid reports whether c is one of the required categories.
func (c Category) Valid() bool {
	for _, rc := range RequiredCategories {
		if rc == c {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// CategoryNames returns the required categories as plain strings.
func CategoryNames() []string {
	names := make([]string, len(RequiredCategories))
	for i, c := range RequiredCategories {
		names[i] = string(c)
	}
	return names
}
