// Package catalog holds the read-only product list that component names are
// resolved against.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"pcbuild-service/internal/models"
)

var (
	ErrEmptyCatalog   = errors.New("catalog has no products")
	ErrInvalidProduct = errors.New("invalid product")
)

// Loader loads the full product list from a backing store.
type Loader interface {
	Load(ctx context.Context) ([]models.Product, error)
}

// Catalog is immutable after construction and safe to share between
// goroutines. Products are handed out by reference.
type Catalog struct {
	products []models.Product
	byID     map[string]int
}

// New validates products and takes ownership of the slice.
func New(products []models.Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[string]int, len(products))
	for i := range products {
		p := &products[i]
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: product at position %d has no id", ErrInvalidProduct, i)
		case p.Title == "":
			return nil, fmt.Errorf("%w: product %s has no title", ErrInvalidProduct, p.ID)
		case p.Price < 0 || p.SalePrice < 0:
			return nil, fmt.Errorf("%w: product %s has a negative price", ErrInvalidProduct, p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %s", ErrInvalidProduct, p.ID)
		}
		byID[p.ID] = i
	}

	return &Catalog{products: products, byID: byID}, nil
}

// Load builds a catalog from loader.
func Load(ctx context.Context, loader Loader) (*Catalog, error) {
	products, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(products)
}

// Products returns the backing slice in catalog order. Callers must not
// modify it.
func (c *Catalog) Products() []models.Product {
	return c.products
}

func (c *Catalog) Len() int {
	return len(c.products)
}

// ByID looks up a product by its store id.
func (c *Catalog) ByID(id string) (*models.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.products[i], true
}

// Stats summarizes the catalog for the stats endpoint and CLI.
type Stats struct {
	Products   int                     `json:"products"`
	MinPrice   int64                   `json:"minPrice"`
	MaxPrice   int64                   `json:"maxPrice"`
	OnSale     int                     `json:"onSale"`
	Categories map[models.Category]int `json:"categories,omitempty"`
}

// Stats computes price bounds. coverage, if non-nil, supplies the per-category
// counts.
func (c *Catalog) Stats(coverage func([]models.Product) map[models.Category]int) Stats {
	s := Stats{Products: len(c.products)}
	for i := range c.products {
		price := c.products[i].EffectivePrice()
		if i == 0 || price < s.MinPrice {
			s.MinPrice = price
		}
		if price > s.MaxPrice {
			s.MaxPrice = price
		}
		if c.products[i].EffectivePrice() != c.products[i].Price {
			s.OnSale++
		}
	}
	if coverage != nil {
		s.Categories = coverage(c.products)
	}
	return s
}
