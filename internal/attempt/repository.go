package attempt

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"bioboost/internal/models"
)

// Repository stores attempt records. It only ever inserts and reads.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListAttempts returns a learner's attempts on a quiz, newest first.
func (r *Repository) ListAttempts(ctx context.Context, quizID, learnerID uuid.UUID) ([]models.QuizResponse, error) {
	var responses []models.QuizResponse
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, learnerID).
		Order("submitted_at DESC").
		Find(&responses).Error
	if err != nil {
		return nil, errors.Annotatef(err, "list attempts of %s on quiz %s", learnerID, quizID)
	}
	return responses, nil
}

func (r *Repository) Insert(ctx context.Context, response *models.QuizResponse) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		return errors.Annotate(err, "insert attempt")
	}
	return nil
}
