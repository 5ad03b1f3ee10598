package auth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"bioboost/internal/models"
	"bioboost/pkg/database"
	"bioboost/pkg/websocket"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service *Service
	repo    *Repository
	hub     *websocket.Hub
	clock   *clock.Mock
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.AllModels()...))

	repo := NewRepository(db)
	hub := websocket.NewHub(discardLogger())
	clk := clock.NewMock(testNow)

	return fixture{
		service: NewService(repo, "test-secret", time.Hour, clk, hub, discardLogger()),
		repo:    repo,
		hub:     hub,
		clock:   clk,
	}
}
