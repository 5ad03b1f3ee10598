package progress

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func progressKey(learnerID uuid.UUID) string {
	return "progress:" + learnerID.String()
}

func (s *RedisStore) Get(ctx context.Context, learnerID uuid.UUID) (Record, error) {
	values, err := s.client.HGetAll(ctx, progressKey(learnerID)).Result()
	if err != nil {
		return Record{}, errors.Trace(err)
	}

	var rec Record
	if rec.Quizzes, err = atoiOrZero(values[string(KindQuizzes)]); err != nil {
		return Record{}, errors.Annotate(err, "quizzes counter")
	}
	if rec.Games, err = atoiOrZero(values[string(KindGames)]); err != nil {
		return Record{}, errors.Annotate(err, "games counter")
	}
	return rec, nil
}

func (s *RedisStore) Set(ctx context.Context, learnerID uuid.UUID, kind Kind, value int) error {
	err := s.client.HSet(ctx, progressKey(learnerID), string(kind), value).Err()
	return errors.Trace(err)
}

func atoiOrZero(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
