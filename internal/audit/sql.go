package audit

import (
	"context"
	"database/sql"
	"fmt"

	"pcbuild-service/internal/common/database"
	"pcbuild-service/internal/models"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const defaultTable = "unresolved_components"

// SQLSink inserts records into a relational table. Both lib/pq and the
// modernc SQLite driver accept $N placeholders, so one statement serves both.
type SQLSink struct {
	db      *sql.DB
	dialect Dialect
	table   string
	owned   bool
}

func NewSQLSink(db *sql.DB, dialect Dialect, table string) (*SQLSink, error) {
	if table == "" {
		table = defaultTable
	}
	if err := database.ValidIdentifier(table); err != nil {
		return nil, err
	}
	switch dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported audit dialect %q", dialect)
	}
	return &SQLSink{db: db, dialect: dialect, table: table}, nil
}

func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	timestamp := "TIMESTAMPTZ"
	if s.dialect == DialectSQLite {
		timestamp = "TIMESTAMP"
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	build_id TEXT NOT NULL,
	category TEXT NOT NULL,
	requested_name TEXT NOT NULL,
	budget BIGINT NOT NULL,
	attempt INTEGER NOT NULL,
	recorded_at %s NOT NULL
)`, s.table, timestamp)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (s *SQLSink) Record(ctx context.Context, rec models.UnresolvedComponent) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, build_id, category, requested_name, budget, attempt, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.BuildID,
		string(rec.Category),
		rec.RequestedName,
		rec.Budget,
		rec.Attempt,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// CountByCategory summarises misses per category.
func (s *SQLSink) CountByCategory(ctx context.Context) (map[models.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT category, COUNT(*) FROM %s GROUP BY category`, s.table))
	if err != nil {
		return nil, fmt.Errorf("count audit records: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		out[models.Category(category)] = n
	}
	return out, rows.Err()
}

// Close releases the connection only when the sink opened it.
func (s *SQLSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
