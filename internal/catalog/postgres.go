package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"pcbuild-service/internal/common/database"
	"pcbuild-service/internal/models"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	position        BIGSERIAL,
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	brand           TEXT NOT NULL DEFAULT '',
	price           BIGINT NOT NULL CHECK (price >= 0),
	sale_price      BIGINT NOT NULL DEFAULT 0,
	price_formatted TEXT NOT NULL DEFAULT '',
	image           TEXT NOT NULL DEFAULT '',
	rating          DOUBLE PRECISION,
	reviews_count   INTEGER,
	store_link      TEXT NOT NULL DEFAULT ''
)`

// PostgresStore reads and writes the products table. Catalog order is the
// insertion order kept in the position column.
type PostgresStore struct {
	db    *sql.DB
	table string
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if err := database.ValidIdentifier(table); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, table: table}, nil
}

// EnsureSchema creates the products table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(postgresSchema, s.table)); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.Product, error) {
	query := fmt.Sprintf(`SELECT id, title, brand, price, sale_price, price_formatted, image, rating, reviews_count, store_link
		FROM %s ORDER BY position`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var (
			p       models.Product
			rating  sql.NullFloat64
			reviews sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Brand, &p.Price, &p.SalePrice, &p.PriceFormatted,
			&p.Image, &rating, &reviews, &p.StoreLink); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if rating.Valid {
			r := rating.Float64
			p.Rating = &r
		}
		if reviews.Valid {
			n := int(reviews.Int64)
			p.ReviewsCount = &n
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// Upsert writes products in one transaction. Existing rows keep their
// position so catalog order survives a re-import.
func (s *PostgresStore) Upsert(ctx context.Context, products []models.Product) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(id, title, brand, price, sale_price, price_formatted, image, rating, reviews_count, store_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, brand = EXCLUDED.brand, price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price, price_formatted = EXCLUDED.price_formatted,
			image = EXCLUDED.image, rating = EXCLUDED.rating,
			reviews_count = EXCLUDED.reviews_count, store_link = EXCLUDED.store_link`, s.table))
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for i := range products {
		p := &products[i]
		var rating, reviews interface{}
		if p.Rating != nil {
			rating = *p.Rating
		}
		if p.ReviewsCount != nil {
			reviews = int64(*p.ReviewsCount)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Brand, p.Price, p.SalePrice, p.PriceFormatted,
			p.Image, rating, reviews, p.StoreLink); err != nil {
			return i, fmt.Errorf("import product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(products), nil
}
