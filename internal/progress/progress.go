// Package progress keeps the per-learner activity counters.
package progress

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

type Kind string

const (
	KindQuizzes Kind = "quizzes"
	KindGames   Kind = "games"
)

var ErrUnknownKind = errors.New("progress: unknown activity kind")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindQuizzes, KindGames:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

// Record holds the counters. In practice each is 0 or 1.
type Record struct {
	Quizzes int `json:"quizzes"`
	Games   int `json:"games"`
}

const (
	quizWeight = 60
	gameWeight = 40
)

func clampOne(n int) int {
	if n > 1 {
		return 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// Percent is the overall completion, 0..100.
func (r Record) Percent() int {
	total := clampOne(r.Quizzes)*quizWeight + clampOne(r.Games)*gameWeight
	if total > 100 {
		return 100
	}
	return total
}

func (r Record) Level() string {
	switch total := r.Percent(); {
	case total < 40:
		return "Beginner"
	case total < 80:
		return "Intermediate"
	default:
		return "Master"
	}
}

type Summary struct {
	Record
	Percent int    `json:"percent"`
	Level   string `json:"level"`
}

func (r Record) Summary() Summary {
	return Summary{Record: r, Percent: r.Percent(), Level: r.Level()}
}

type Store interface {
	Get(ctx context.Context, learnerID uuid.UUID) (Record, error)
	Set(ctx context.Context, learnerID uuid.UUID, kind Kind, value int) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Get(ctx context.Context, learnerID uuid.UUID) (Record, error) {
	return s.store.Get(ctx, learnerID)
}

// Mark sets the counter for kind to 1. Marking twice has no further effect.
func (s *Service) Mark(ctx context.Context, learnerID uuid.UUID, kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if err := s.store.Set(ctx, learnerID, kind, 1); err != nil {
		s.logger.Warn("progress update failed",
			slog.String("learner_id", learnerID.String()),
			slog.String("kind", string(kind)),
			slog.Any("error", err))
		return err
	}
	return nil
}
