// internal/models/product.go
package models

import (
	"fmt"
	"strings"
)

// Product is one priced catalog entry. Products are loaded once and never
// mutated afterwards; everything downstream refers to them by pointer.
type Product struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Brand          string   `json:"brand,omitempty" yaml:"brand,omitempty"`
	Price          int64    `json:"price" yaml:"price"`
	SalePrice      int64    `json:"salePrice,omitempty" yaml:"salePrice,omitempty"`
	PriceFormatted string   `json:"priceFormatted,omitempty" yaml:"priceFormatted,omitempty"`
	Image          string   `json:"image,omitempty" yaml:"image,omitempty"`
	Rating         *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewsCount   *int     `json:"reviewsCount,omitempty" yaml:"reviewsCount,omitempty"`
	StoreLink      string   `json:"storeLink,omitempty" yaml:"storeLink,omitempty"`
}

// PriceField names the Product price that build totals are summed from.
type PriceField string

const (
	// PriceList sums the catalog price field.
	PriceList PriceField = "price"
	// PriceEffective sums the sale price whenever it undercuts the list price.
	PriceEffective PriceField = "effective"
)

// ParsePriceField maps a config value to a PriceField. Empty selects PriceList.
func ParsePriceField(s string) (PriceField, error) {
	switch f := PriceField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return PriceList, nil
	case PriceList, PriceEffective:
		return f, nil
	default:
		return "", fmt.Errorf("unknown price field %q", s)
	}
}

// PriceOf returns the price selected by field.
func (p *Product) PriceOf(field PriceField) int64 {
	if field == PriceEffective {
		return p.EffectivePrice()
	}
	return p.Price
}

// EffectivePrice is the price a buyer pays: the sale price when the store
// runs a discount, the list price otherwise.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice > 0 && p.SalePrice < p.Price {
		return p.SalePrice
	}
	return p.Price
}
