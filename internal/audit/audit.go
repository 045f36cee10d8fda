// Package audit records component names the catalog could not resolve.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/database"
	"pcbuild-service/internal/models"
)

const (
	SinkNone     = "none"
	SinkFile     = "file"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkRedis    = "redis"
)

// Sink stores unresolved-component records. Implementations are safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, rec models.UnresolvedComponent) error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, models.UnresolvedComponent) error { return nil }

// Closer is implemented by sinks holding a file or connection.
type Closer interface {
	Close() error
}

// Deps carries already-opened backends so New does not dial twice.
type Deps struct {
	Postgres *database.PostgresClient
	Redis    *redis.Client
}

// New builds the sink selected by cfg.Sink.
func New(ctx context.Context, cfg config.AuditConfig, deps Deps) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sink)) {
	case "", SinkNone:
		return Nop{}, nil
	case SinkFile:
		return NewFileSink(cfg.Path, cfg.MaxBytes)
	case SinkPostgres:
		if deps.Postgres == nil {
			return nil, errors.New("audit sink postgres requires a database connection")
		}
		sink, err := NewSQLSink(deps.Postgres.DB, DialectPostgres, cfg.Table)
		if err != nil {
			return nil, err
		}
		return sink, sink.EnsureSchema(ctx)
	case SinkSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		sink, err := NewSQLSink(db, DialectSQLite, cfg.Table)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		sink.owned = true
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sink, nil
	case SinkRedis:
		if deps.Redis == nil {
			return nil, errors.New("audit sink redis requires a redis client")
		}
		return NewRedisSink(deps.Redis, cfg.Key, cfg.MaxLen), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}
