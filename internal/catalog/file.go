package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pcbuild-service/internal/models"
)

// card mirrors a kaspi.kz product card as stored by the scraper. Both the
// card field names and the plain Product names are accepted.
type card struct {
	ID              flexString `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	Brand           string     `json:"brand" yaml:"brand"`
	UnitPrice       *int64     `json:"unitPrice" yaml:"unitPrice"`
	UnitSalePrice   *int64     `json:"unitSalePrice" yaml:"unitSalePrice"`
	Price           *int64     `json:"price" yaml:"price"`
	SalePrice       *int64     `json:"salePrice" yaml:"salePrice"`
	PriceFormatted  string     `json:"priceFormatted" yaml:"priceFormatted"`
	ShopLink        string     `json:"shopLink" yaml:"shopLink"`
	StoreLink       string     `json:"storeLink" yaml:"storeLink"`
	PreviewImages   []image    `json:"previewImages" yaml:"previewImages"`
	Image           string     `json:"image" yaml:"image"`
	Rating          *float64   `json:"rating" yaml:"rating"`
	ReviewsQuantity *int       `json:"reviewsQuantity" yaml:"reviewsQuantity"`
	ReviewsCount    *int       `json:"reviewsCount" yaml:"reviewsCount"`
}

type image struct {
	Large  string `json:"large" yaml:"large"`
	Medium string `json:"medium" yaml:"medium"`
	Small  string `json:"small" yaml:"small"`
}

// flexString decodes both "123" and 123; kaspi ids arrive in either form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

func (f *flexString) UnmarshalYAML(node *yaml.Node) error {
	*f = flexString(node.Value)
	return nil
}

func (c card) product() models.Product {
	p := models.Product{
		ID:             strings.TrimSpace(string(c.ID)),
		Title:          strings.TrimSpace(c.Title),
		Brand:          c.Brand,
		PriceFormatted: c.PriceFormatted,
		StoreLink:      firstNonEmpty(c.ShopLink, c.StoreLink),
		Image:          c.Image,
		Rating:         c.Rating,
		ReviewsCount:   c.ReviewsQuantity,
	}
	switch {
	case c.UnitPrice != nil:
		p.Price = *c.UnitPrice
	case c.Price != nil:
		p.Price = *c.Price
	}
	switch {
	case c.UnitSalePrice != nil:
		p.SalePrice = *c.UnitSalePrice
	case c.SalePrice != nil:
		p.SalePrice = *c.SalePrice
	}
	if p.Image == "" && len(c.PreviewImages) > 0 {
		p.Image = firstNonEmpty(c.PreviewImages[0].Large, c.PreviewImages[0].Medium, c.PreviewImages[0].Small)
	}
	if p.ReviewsCount == nil {
		p.ReviewsCount = c.ReviewsCount
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// document accepts the three layouts seen in practice: a bare list, a
// {"products": [...]} wrapper and the kaspi search response {"data": {"cards": [...]}}.
type document struct {
	Products []card `json:"products" yaml:"products"`
	Data     struct {
		Cards []card `json:"cards" yaml:"cards"`
	} `json:"data" yaml:"data"`
}

// FileLoader reads a JSON or YAML catalog file, chosen by extension.
type FileLoader struct {
	Path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

func (l *FileLoader) Load(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var cards []card
	switch strings.ToLower(filepath.Ext(l.Path)) {
	case ".yaml", ".yml":
		cards, err = decodeYAML(raw)
	default:
		cards, err = decodeJSON(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", l.Path, err)
	}

	products := make([]models.Product, len(cards))
	for i, c := range cards {
		products[i] = c.product()
	}
	return products, nil
}

func decodeJSON(raw []byte) ([]card, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cards []card
		err := json.Unmarshal(trimmed, &cards)
		return cards, err
	}
	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.cards(), nil
}

func decodeYAML(raw []byte) ([]card, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var cards []card
		err := node.Content[0].Decode(&cards)
		return cards, err
	}
	var doc document
	if err := node.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.cards(), nil
}

func (d document) cards() []card {
	if len(d.Products) > 0 {
		return d.Products
	}
	return d.Data.Cards
}
