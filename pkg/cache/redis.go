// pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"bioboost/internal/models"
)

var ErrMiss = errors.New("cache: no value found for the given key")

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

// RedisCache caches quiz metadata. Attempt history is never cached.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func quizKey(id uuid.UUID) string {
	return "quiz:" + id.String()
}

func (c *RedisCache) SetQuiz(ctx context.Context, quiz *models.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, quizKey(quiz.ID), data, c.ttl).Err()
}

func (c *RedisCache) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	data, err := c.client.Get(ctx, quizKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (c *RedisCache) InvalidateQuiz(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, quizKey(id)).Err()
}
