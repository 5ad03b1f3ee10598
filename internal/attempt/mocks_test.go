package attempt

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bioboost/internal/models"
	"bioboost/internal/progress"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) ListAttempts(ctx context.Context, quizID, learnerID uuid.UUID) ([]models.QuizResponse, error) {
	args := m.Called(ctx, quizID, learnerID)

	return args.Get(0).([]models.QuizResponse), args.Error(1)
}

func (m *StoreMock) Insert(ctx context.Context, response *models.QuizResponse) error {
	args := m.Called(ctx, response)

	return args.Error(0)
}

type QuizSourceMock struct {
	mock.Mock
}

func (m *QuizSourceMock) Lookup(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(*models.Quiz), args.Error(1)
}

func (m *QuizSourceMock) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	args := m.Called(ctx, quizID)

	return args.Get(0).([]models.Question), args.Error(1)
}

type ProgressMarkerMock struct {
	mock.Mock
}

func (m *ProgressMarkerMock) Mark(ctx context.Context, learnerID uuid.UUID, kind progress.Kind) error {
	args := m.Called(ctx, learnerID, kind)

	return args.Error(0)
}
