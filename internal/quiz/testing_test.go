package quiz

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"bioboost/internal/auth"
	"bioboost/internal/models"
	"bioboost/pkg/cache"
	"bioboost/pkg/database"
	"bioboost/pkg/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service *Service
	auth    *auth.Service
	hub     *websocket.Hub
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.AllModels()...))

	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr())
	t.Cleanup(func() { client.Close() })

	hub := websocket.NewHub(discardLogger())
	clk := clock.NewMock(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))

	return fixture{
		service: NewService(NewRepository(db), cache.NewRedisCache(client, time.Minute), hub, discardLogger()),
		auth:    auth.NewService(auth.NewRepository(db), "test-secret", time.Hour, clk, hub, discardLogger()),
		hub:     hub,
		redis:   mr,
	}
}

func (f fixture) register(t *testing.T, email string, role models.Role) auth.Session {
	t.Helper()
	session, err := f.auth.Register(context.Background(), auth.RegisterInput{Email: email, Password: "secret1", Role: role})
	require.NoError(t, err)
	return session
}

func (f fixture) login(t *testing.T, email string) string {
	t.Helper()
	token, _, err := f.auth.Login(context.Background(), email, "secret1")
	require.NoError(t, err)
	return token
}
