// internal/quiz/repository.go
package quiz

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"bioboost/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	if err := r.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return errors.Annotate(err, "create quiz")
	}
	return nil
}

func (r *Repository) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.WithContext(ctx).First(&quiz, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get quiz %s", id)
	}
	return &quiz, nil
}

func (r *Repository) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	if err := r.db.WithContext(ctx).Save(quiz).Error; err != nil {
		return errors.Annotatef(err, "save quiz %s", quiz.ID)
	}
	return nil
}

// DeleteQuiz removes the quiz and its questions together.
func (r *Repository) DeleteQuiz(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return errors.Annotatef(err, "delete questions of quiz %s", id)
		}
		res := tx.Delete(&models.Quiz{}, "id = ?", id)
		if res.Error != nil {
			return errors.Annotatef(res.Error, "delete quiz %s", id)
		}
		if res.RowsAffected == 0 {
			return ErrQuizNotFound
		}
		return nil
	})
}

func (r *Repository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&quizzes).Error
	if err != nil {
		return nil, errors.Annotatef(err, "list quizzes of teacher %s", teacherID)
	}
	return quizzes, nil
}

func (r *Repository) ListPublished(ctx context.Context) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.db.WithContext(ctx).
		Where("is_published = ?", true).
		Order("created_at DESC").
		Find(&quizzes).Error
	if err != nil {
		return nil, errors.Annotate(err, "list published quizzes")
	}
	return quizzes, nil
}

func (r *Repository) CountQuestions(ctx context.Context, quizID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).Where("quiz_id = ?", quizID).Count(&count).Error
	if err != nil {
		return 0, errors.Annotatef(err, "count questions of quiz %s", quizID)
	}
	return count, nil
}

func (r *Repository) CreateQuestion(ctx context.Context, question *models.Question) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		return errors.Annotate(err, "create question")
	}
	return nil
}

func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).First(&question, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, errors.Annotatef(err, "get question %s", id)
	}
	return &question, nil
}

func (r *Repository) SaveQuestion(ctx context.Context, question *models.Question) error {
	if err := r.db.WithContext(ctx).Save(question).Error; err != nil {
		return errors.Annotatef(err, "save question %s", question.ID)
	}
	return nil
}

func (r *Repository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Question{}, "id = ?", id)
	if res.Error != nil {
		return errors.Annotatef(res.Error, "delete question %s", id)
	}
	if res.RowsAffected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

// ListQuestions returns the quiz's questions in authoring order.
func (r *Repository) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("position ASC").
		Order("created_at ASC").
		Find(&questions).Error
	if err != nil {
		return nil, errors.Annotatef(err, "list questions of quiz %s", quizID)
	}
	return questions, nil
}
