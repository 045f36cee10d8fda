package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcbuild-service/internal/models"
)

type staticLoader struct {
	products []models.Product
	err      error
	calls    int
}

func (l *staticLoader) Load(context.Context) ([]models.Product, error) {
	l.calls++
	return l.products, l.err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		products []models.Product
		wantErr  error
	}{
		{name: "empty", products: nil, wantErr: ErrEmptyCatalog},
		{name: "missing id", products: []models.Product{{Title: "x"}}, wantErr: ErrInvalidProduct},
		{name: "missing title", products: []models.Product{{ID: "1"}}, wantErr: ErrInvalidProduct},
		{name: "negative price", products: []models.Product{{ID: "1", Title: "x", Price: -1}}, wantErr: ErrInvalidProduct},
		{name: "duplicate id", products: []models.Product{{ID: "1", Title: "x"}, {ID: "1", Title: "y"}}, wantErr: ErrInvalidProduct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.products)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCatalog_LookupAndStats(t *testing.T) {
	c, err := New([]models.Product{
		{ID: "1", Title: "Ryzen 5 3600", Price: 60000},
		{ID: "2", Title: "GTX1660S", Price: 90000, SalePrice: 85000},
		{ID: "3", Title: "NF-P12", Price: 5000},
	})
	require.NoError(t, err)

	p, ok := c.ByID("2")
	require.True(t, ok)
	assert.Same(t, &c.Products()[1], p)

	_, ok = c.ByID("404")
	assert.False(t, ok)

	stats := c.Stats(nil)
	assert.Equal(t, 3, stats.Products)
	assert.Equal(t, int64(5000), stats.MinPrice)
	assert.Equal(t, int64(85000), stats.MaxPrice)
	assert.Equal(t, 1, stats.OnSale)
	assert.Nil(t, stats.Categories)
}

func TestLoad_PropagatesLoaderError(t *testing.T) {
	_, err := Load(context.Background(), &staticLoader{err: errors.New("connection refused")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFileLoader_KaspiCards(t *testing.T) {
	path := writeFile(t, "catalog.json", `{"data": {"cards": [
		{"id": 100001, "title": " Ryzen 5 3600 ", "brand": "AMD", "unitPrice": 60000, "unitSalePrice": 58000,
		 "shopLink": "/shop/p/1/", "previewImages": [{"large": "https://img/1.jpg"}], "rating": 4.9, "reviewsQuantity": 812}
	]}}`)

	products, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "100001", p.ID)
	assert.Equal(t, "Ryzen 5 3600", p.Title)
	assert.Equal(t, int64(60000), p.Price)
	assert.Equal(t, int64(58000), p.SalePrice)
	assert.Equal(t, "/shop/p/1/", p.StoreLink)
	assert.Equal(t, "https://img/1.jpg", p.Image)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.9, *p.Rating)
	require.NotNil(t, p.ReviewsCount)
	assert.Equal(t, 812, *p.ReviewsCount)
}

func TestFileLoader_Layouts(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "json list", file: "c.json", body: `[{"id": "1", "title": "H510", "price": 20000}]`},
		{name: "json wrapper", file: "c.json", body: `{"products": [{"id": "1", "title": "H510", "price": 20000}]}`},
		{name: "yaml list", file: "c.yaml", body: "- id: 1\n  title: H510\n  unitPrice: 20000\n"},
		{name: "yaml wrapper", file: "c.yml", body: "products:\n  - id: \"1\"\n    title: H510\n    price: 20000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := NewFileLoader(writeFile(t, tt.file, tt.body)).Load(context.Background())
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, "1", products[0].ID)
			assert.Equal(t, "H510", products[0].Title)
			assert.Equal(t, int64(20000), products[0].Price)
		})
	}
}

func TestFileLoader_Errors(t *testing.T) {
	_, err := NewFileLoader(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.Error(t, err)

	_, err = NewFileLoader(writeFile(t, "bad.json", `{"data": `)).Load(context.Background())
	assert.Error(t, err)
}

func TestFileLoader_SampleCatalog(t *testing.T) {
	c, err := Load(context.Background(), NewFileLoader(filepath.Join("..", "..", "configs", "catalog.sample.json")))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Len(), 8)

	for _, title := range []string{"Ryzen 5 3600", "GTX1660S", "B450M-K", "Vengeance16", "EVGA600", "Hyper212", "NF-P12", "H510"} {
		found := false
		for _, p := range c.Products() {
			if p.Title == title {
				found = true
			}
		}
		assert.True(t, found, title)
	}
}
