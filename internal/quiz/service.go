// internal/quiz/service.go
package quiz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"bioboost/internal/auth"
	"bioboost/internal/models"
	"bioboost/pkg/cache"
	"bioboost/pkg/websocket"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotOwner         = errors.New("quiz belongs to another teacher")
)

const (
	quizzesTable   = "quizzes"
	fieldPublished = "is_published"
	fieldQuestions = "questions"
	fieldDetails   = "details"
)

// QuizCache holds quiz metadata between reads.
type QuizCache interface {
	SetQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	InvalidateQuiz(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo      *Repository
	cache     QuizCache
	publisher websocket.Publisher
	logger    *slog.Logger
}

func NewService(repo *Repository, cache QuizCache, publisher websocket.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Lookup returns the quiz regardless of who asks, reading through the cache.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	quiz, err := s.cache.GetQuiz(ctx, id)
	if err == nil {
		return quiz, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("quiz cache read failed", slog.String("quiz_id", id.String()), slog.Any("error", err))
	}

	quiz, err = s.repo.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetQuiz(ctx, quiz); err != nil {
		s.logger.Warn("quiz cache write failed", slog.String("quiz_id", id.String()), slog.Any("error", err))
	}
	return quiz, nil
}

// CanView reports whether actor may see quiz. Drafts are visible to their
// owner only.
func CanView(actor auth.Session, quiz *models.Quiz) bool {
	return quiz.IsPublished || quiz.TeacherID == actor.UserID
}

// GetQuiz returns the quiz with its questions. Answer keys are included for
// the owner only.
func (s *Service) GetQuiz(ctx context.Context, actor auth.Session, id uuid.UUID) (*models.QuizWithQuestions, error) {
	quiz, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, quiz) {
		return nil, ErrQuizNotFound
	}

	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	owner := quiz.TeacherID == actor.UserID
	return &models.QuizWithQuestions{
		Quiz:      *quiz,
		Questions: models.QuestionsToDTO(questions, owner),
	}, nil
}

// ListQuestions returns a quiz's questions in authoring order, with answers.
func (s *Service) ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error) {
	return s.repo.ListQuestions(ctx, quizID)
}

func (s *Service) ListPublished(ctx context.Context) ([]models.Quiz, error) {
	return s.repo.ListPublished(ctx)
}

func (s *Service) ListTeacherQuizzes(ctx context.Context, teacherID uuid.UUID) ([]models.Quiz, error) {
	return s.repo.ListByTeacher(ctx, teacherID)
}

func (s *Service) CreateQuiz(ctx context.Context, actor auth.Session, in QuizInput) (*models.Quiz, error) {
	if in.PassingScore == 0 {
		in.PassingScore = defaultPassingScore
	}
	in, err := NormalizeQuiz(in)
	if err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		TeacherID:    actor.UserID,
		Title:        in.Title,
		Description:  in.Description,
		PassingScore: in.PassingScore,
	}
	if err := s.repo.CreateQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	s.logger.Info("quiz created", slog.String("quiz_id", quiz.ID.String()), slog.String("teacher_id", actor.UserID.String()))
	s.notify(quiz.ID, websocket.ChangeInsert, "", nil)
	return quiz, nil
}

// owned loads the quiz straight from the database and checks ownership.
func (s *Service) owned(ctx context.Context, actor auth.Session, id uuid.UUID) (*models.Quiz, error) {
	quiz, err := s.repo.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if quiz.TeacherID != actor.UserID {
		return nil, ErrNotOwner
	}
	return quiz, nil
}

func (s *Service) UpdateQuiz(ctx context.Context, actor auth.Session, id uuid.UUID, in QuizInput) (*models.Quiz, error) {
	quiz, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in, err = NormalizeQuiz(in)
	if err != nil {
		return nil, err
	}

	quiz.Title = in.Title
	quiz.Description = in.Description
	quiz.PassingScore = in.PassingScore
	if err := s.repo.SaveQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.notify(id, websocket.ChangeUpdate, fieldDetails, nil)
	return quiz, nil
}

func (s *Service) SetPublished(ctx context.Context, actor auth.Session, id uuid.UUID, published bool) (*models.Quiz, error) {
	quiz, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if quiz.IsPublished == published {
		return quiz, nil
	}

	quiz.IsPublished = published
	if err := s.repo.SaveQuiz(ctx, quiz); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.notify(id, websocket.ChangeUpdate, fieldPublished, published)
	return quiz, nil
}

func (s *Service) DeleteQuiz(ctx context.Context, actor auth.Session, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.DeleteQuiz(ctx, id); err != nil {
		return err
	}

	s.logger.Info("quiz deleted", slog.String("quiz_id", id.String()))
	s.invalidate(ctx, id)
	s.notify(id, websocket.ChangeDelete, "", nil)
	return nil
}

// AddQuestion appends a question after the quiz's existing ones.
func (s *Service) AddQuestion(ctx context.Context, actor auth.Session, quizID uuid.UUID, in QuestionInput) (*models.Question, error) {
	if _, err := s.owned(ctx, actor, quizID); err != nil {
		return nil, err
	}
	in, err := ValidateQuestion(in)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.CountQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		QuizID:      quizID,
		Question:    in.Question,
		Type:        in.Type,
		Answer:      in.Answer,
		Explanation: in.Explanation,
		Position:    int(count) + 1,
	}
	question.SetOptions(in.Options)
	if err := s.repo.CreateQuestion(ctx, question); err != nil {
		return nil, err
	}

	s.invalidate(ctx, quizID)
	s.notify(quizID, websocket.ChangeUpdate, fieldQuestions, nil)
	return question, nil
}

func (s *Service) UpdateQuestion(ctx context.Context, actor auth.Session, id uuid.UUID, in QuestionInput) (*models.Question, error) {
	question, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, actor, question.QuizID); err != nil {
		return nil, err
	}
	in, err = ValidateQuestion(in)
	if err != nil {
		return nil, err
	}

	question.Question = in.Question
	question.Type = in.Type
	question.Answer = in.Answer
	question.Explanation = in.Explanation
	question.SetOptions(in.Options)
	if err := s.repo.SaveQuestion(ctx, question); err != nil {
		return nil, err
	}

	s.invalidate(ctx, question.QuizID)
	s.notify(question.QuizID, websocket.ChangeUpdate, fieldQuestions, nil)
	return question, nil
}

func (s *Service) DeleteQuestion(ctx context.Context, actor auth.Session, id uuid.UUID) error {
	question, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, actor, question.QuizID); err != nil {
		return err
	}
	if err := s.repo.DeleteQuestion(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, question.QuizID)
	s.notify(question.QuizID, websocket.ChangeUpdate, fieldQuestions, nil)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.InvalidateQuiz(ctx, id); err != nil {
		s.logger.Warn("quiz cache invalidation failed", slog.String("quiz_id", id.String()), slog.Any("error", err))
	}
}

func (s *Service) notify(id uuid.UUID, kind websocket.ChangeType, field string, value any) {
	s.publisher.Publish(websocket.Topic(quizzesTable, id.String()), websocket.Change{
		Table:    quizzesTable,
		RecordID: id.String(),
		Type:     kind,
		Field:    field,
		Value:    value,
	})
}
