package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	summaryTTL = 24 * time.Hour
	resultTTL  = 15 * time.Minute
)

// Redis is the shared cache used when multiple instances serve the same
// conversations. Failures degrade to misses; they are logged at debug and
// never surface on the request path.
type Redis struct {
	client *redis.Client
}

func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) GetSummary(ctx context.Context, conversationID string, coveredMessages int) (string, bool) {
	if r == nil || r.client == nil || strings.TrimSpace(conversationID) == "" {
		return "", false
	}
	val, err := r.client.Get(ctx, summaryKey(conversationID, coveredMessages)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Msg("summary cache read failed")
		}
		return "", false
	}
	return val, true
}

func (r *Redis) PutSummary(ctx context.Context, conversationID string, coveredMessages int, summary string) {
	if r == nil || r.client == nil || strings.TrimSpace(conversationID) == "" || strings.TrimSpace(summary) == "" {
		return
	}
	if err := r.client.Set(ctx, summaryKey(conversationID, coveredMessages), summary, summaryTTL).Err(); err != nil {
		log.Debug().Err(err).Msg("summary cache write failed")
	}
}

func (r *Redis) GetResult(ctx context.Context, key string) ([]byte, bool) {
	if r == nil || r.client == nil || strings.TrimSpace(key) == "" {
		return nil, false
	}
	val, err := r.client.Get(ctx, "toolres:"+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Msg("result cache read failed")
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) PutResult(ctx context.Context, key string, payload []byte) {
	if r == nil || r.client == nil || strings.TrimSpace(key) == "" || len(payload) == 0 {
		return
	}
	if err := r.client.Set(ctx, "toolres:"+key, payload, resultTTL).Err(); err != nil {
		log.Debug().Err(err).Msg("result cache write failed")
	}
}
