package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pcbuild-service/internal/catalog"
	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/database"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/server"
)

// backends holds the connections the configured catalog source and audit sink
// need. Unused backends stay nil.
type backends struct {
	postgres *database.PostgresClient
	es       *database.ElasticsearchClient
	redis    *database.RedisClient
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	be := &backends{}

	needPostgres := cfg.Catalog.Source == "postgres" || cfg.Audit.Sink == "postgres"
	needES := cfg.Catalog.Source == "elasticsearch"
	needRedis := cfg.Catalog.CacheTTL > 0 || cfg.Audit.Sink == "redis"

	if needPostgres {
		err := retryWithBackoff(ctx, func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			be.postgres = pg
			return nil
		}, 15, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected successfully")
	}

	if needES {
		err := retryWithBackoff(ctx, func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			be.es = es
			return nil
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			be.Close()
			return nil, err
		}
		log.Info("Elasticsearch connected successfully")
	}

	if needRedis {
		rc := database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(ctx, func() error {
			return rc.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			rc.Close()
			be.Close()
			return nil, err
		}
		be.redis = rc
		log.Info("Redis connected successfully")
	}

	return be, nil
}

func (b *backends) redisClient() *redis.Client {
	if b.redis == nil {
		return nil
	}
	return b.redis.Client
}

// catalogLoader picks the configured product source and wraps it in the
// Redis snapshot cache when a TTL is set.
func (b *backends) catalogLoader(cfg *config.Config, log logger.Logger) (catalog.Loader, error) {
	var loader catalog.Loader
	switch cfg.Catalog.Source {
	case "file":
		loader = catalog.NewFileLoader(cfg.Catalog.Path)
	case "postgres":
		store, err := catalog.NewPostgresStore(b.postgres.DB, cfg.Catalog.Table)
		if err != nil {
			return nil, err
		}
		loader = store
	case "elasticsearch":
		loader = catalog.NewElasticsearchStore(b.es.Client, cfg.Catalog.Index)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	if cfg.Catalog.CacheTTL > 0 && b.redis != nil {
		loader = catalog.NewCachedLoader(loader, b.redis.Client, cfg.Catalog.CacheKey, config.GetDuration(cfg.Catalog.CacheTTL), log)
	}
	return loader, nil
}

// checks lists a readiness probe per opened backend.
func (b *backends) checks() map[string]server.Check {
	checks := make(map[string]server.Check)
	if b.postgres != nil {
		checks["postgres"] = b.postgres.Ping
	}
	if b.es != nil {
		checks["elasticsearch"] = b.es.Ping
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Ping
	}
	return checks
}

func (b *backends) Close() {
	if b.postgres != nil {
		b.postgres.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

func categoryKeywords(raw map[string][]string) map[models.Category][]string {
	out := make(map[models.Category][]string, len(raw))
	for name, kws := range raw {
		for _, c := range models.RequiredCategories {
			if strings.EqualFold(string(c), name) {
				out[c] = kws
			}
		}
	}
	return out
}
