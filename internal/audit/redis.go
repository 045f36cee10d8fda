package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pcbuild-service/internal/models"
)

const defaultKey = "audit:unresolved"

// RedisSink pushes records onto a capped list.
type RedisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

func NewRedisSink(client *redis.Client, key string, maxLen int64) *RedisSink {
	if key == "" {
		key = defaultKey
	}
	return &RedisSink{client: client, key: key, maxLen: maxLen}
}

func (s *RedisSink) Record(ctx context.Context, rec models.UnresolvedComponent) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, payload)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push audit record: %w", err)
	}
	return nil
}
