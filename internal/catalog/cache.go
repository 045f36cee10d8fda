package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/models"
)

// CachedLoader keeps a JSON snapshot of the catalog in Redis so restarts do
// not hit the primary store. Redis failures degrade to the wrapped loader.
type CachedLoader struct {
	next   Loader
	client *redis.Client
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedLoader(next Loader, client *redis.Client, key string, ttl time.Duration, log logger.Logger) *CachedLoader {
	return &CachedLoader{
		next:   next,
		client: client,
		key:    key,
		ttl:    ttl,
		logger: log,
	}
}

func (l *CachedLoader) Load(ctx context.Context) ([]models.Product, error) {
	cached, err := l.client.Get(ctx, l.key).Bytes()
	switch {
	case err == nil:
		var products []models.Product
		if err := json.Unmarshal(cached, &products); err == nil && len(products) > 0 {
			l.logger.Debug("catalog loaded from cache", map[string]interface{}{
				"key":      l.key,
				"products": len(products),
			})
			return products, nil
		}
		l.logger.Warn("catalog cache entry unreadable", map[string]interface{}{"key": l.key})
	case errors.Is(err, redis.Nil):
	default:
		l.logger.Warn("catalog cache read failed", map[string]interface{}{
			"key":   l.key,
			"error": err.Error(),
		})
	}

	products, err := l.next.Load(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(products); err == nil {
		if err := l.client.Set(ctx, l.key, payload, l.ttl).Err(); err != nil {
			l.logger.Warn("catalog cache write failed", map[string]interface{}{
				"key":   l.key,
				"error": err.Error(),
			})
		}
	}
	return products, nil
}

// Invalidate drops the snapshot, used after an import.
func (l *CachedLoader) Invalidate(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
