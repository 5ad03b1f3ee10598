package progress

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PercentAndLevel(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		percent int
		level   string
	}{
		{"nothing done", Record{}, 0, "Beginner"},
		{"game only", Record{Games: 1}, 40, "Intermediate"},
		{"quiz only", Record{Quizzes: 1}, 60, "Intermediate"},
		{"both", Record{Quizzes: 1, Games: 1}, 100, "Master"},
		{"counters above one are capped", Record{Quizzes: 5, Games: 3}, 100, "Master"},
		{"negative counters count as zero", Record{Quizzes: -1}, 0, "Beginner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.percent, tt.rec.Percent())
			assert.Equal(t, tt.level, tt.rec.Level())
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("games")
	require.NoError(t, err)
	assert.Equal(t, KindGames, k)

	_, err = ParseKind("lessons")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(NewRedisStore(client), slog.New(slog.NewTextHandler(io.Discard, nil))), mr
}

func TestService_MarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, mr := newRedisService(t)
	learner := uuid.New()

	rec, err := svc.Get(ctx, learner)
	require.NoError(t, err)
	assert.Equal(t, Record{}, rec)

	require.NoError(t, svc.Mark(ctx, learner, KindQuizzes))
	require.NoError(t, svc.Mark(ctx, learner, KindQuizzes))

	rec, err = svc.Get(ctx, learner)
	require.NoError(t, err)
	assert.Equal(t, Record{Quizzes: 1}, rec)
	assert.Equal(t, "1", mr.HGet("progress:"+learner.String(), "quizzes"))
}

func TestService_MarkRejectsUnknownKind(t *testing.T) {
	svc, _ := newRedisService(t)

	err := svc.Mark(context.Background(), uuid.New(), Kind("lessons"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestService_MarkSurfacesStoreFailure(t *testing.T) {
	svc, mr := newRedisService(t)
	mr.Close()

	err := svc.Mark(context.Background(), uuid.New(), KindGames)
	assert.Error(t, err)
}

func TestRedisStore_CorruptCounter(t *testing.T) {
	_, mr := newRedisService(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	learner := uuid.New()
	mr.HSet("progress:"+learner.String(), "games", "lots")

	_, err := NewRedisStore(client).Get(context.Background(), learner)
	assert.ErrorContains(t, err, "games counter")
}
