package attempt

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tilinna/clock"
	"gorm.io/datatypes"

	"bioboost/internal/auth"
	"bioboost/internal/models"
	"bioboost/internal/progress"
	"bioboost/internal/quiz"
	"bioboost/pkg/websocket"
)

const responsesTable = "quiz_responses"

// Store reads and appends attempt records.
type Store interface {
	ListAttempts(ctx context.Context, quizID, learnerID uuid.UUID) ([]models.QuizResponse, error)
	Insert(ctx context.Context, response *models.QuizResponse) error
}

// QuizSource resolves quizzes and their questions.
type QuizSource interface {
	Lookup(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListQuestions(ctx context.Context, quizID uuid.UUID) ([]models.Question, error)
}

type ProgressMarker interface {
	Mark(ctx context.Context, learnerID uuid.UUID, kind progress.Kind) error
}

// ShuffleFunc permutes n elements through swap, like rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

type Option func(*Engine)

func WithShuffle(shuffle ShuffleFunc) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

func WithPolicy(policy Policy) Option {
	return func(e *Engine) { e.policy = policy }
}

type Engine struct {
	store     Store
	quizzes   QuizSource
	progress  ProgressMarker
	publisher websocket.Publisher
	clock     clock.Clock
	policy    Policy
	shuffle   ShuffleFunc
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewEngine(store Store, quizzes QuizSource, marker ProgressMarker, publisher websocket.Publisher, clk clock.Clock, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		quizzes:   quizzes,
		progress:  marker,
		publisher: publisher,
		clock:     clk,
		policy:    DefaultPolicy(),
		shuffle:   rand.Shuffle,
		logger:    logger,
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sheet is the question set presented for one attempt.
type Sheet struct {
	Quiz        models.Quiz          `json:"quiz"`
	Questions   []models.QuestionDTO `json:"questions"`
	Eligibility Eligibility          `json:"eligibility"`
}

type Review struct {
	QuestionID  uuid.UUID `json:"question_id"`
	Question    string    `json:"question"`
	Submitted   string    `json:"submitted"`
	Answer      string    `json:"answer"`
	Explanation string    `json:"explanation,omitempty"`
	Correct     bool      `json:"correct"`
}

// Result is the scored outcome of a submission. Recorded is false when the
// attempt could not be stored.
type Result struct {
	AttemptID      uuid.UUID   `json:"attempt_id"`
	Score          int         `json:"score"`
	TotalQuestions int         `json:"total_questions"`
	PassingScore   int         `json:"passing_score"`
	Passed         bool        `json:"passed"`
	Recorded       bool        `json:"recorded"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	Review         []Review    `json:"review"`
	Eligibility    Eligibility `json:"eligibility"`
}

// Eligibility reads the learner's attempt history and evaluates the policy
// at the current time.
func (e *Engine) Eligibility(ctx context.Context, learnerID, quizID uuid.UUID) (Eligibility, error) {
	attempts, err := e.store.ListAttempts(ctx, quizID, learnerID)
	if err != nil {
		if e.policy.FailClosed {
			return Eligibility{}, &PersistenceError{Op: "read attempts", Err: err}
		}
		e.logger.Warn("attempt history unavailable, allowing attempt",
			slog.String("quiz_id", quizID.String()),
			slog.String("learner_id", learnerID.String()),
			slog.Any("error", err))
		elig := ComputeEligibility(nil, e.clock.Now(), e.policy)
		elig.Degraded = true
		return elig, nil
	}

	submitted := make([]time.Time, len(attempts))
	for i, a := range attempts {
		submitted[i] = a.SubmittedAt
	}
	return ComputeEligibility(submitted, e.clock.Now(), e.policy), nil
}

// QuizEligibility is Eligibility for a quiz the learner can see.
func (e *Engine) QuizEligibility(ctx context.Context, learner auth.Session, quizID uuid.UUID) (Eligibility, error) {
	if _, err := e.visibleQuiz(ctx, learner, quizID); err != nil {
		return Eligibility{}, err
	}
	return e.Eligibility(ctx, learner.UserID, quizID)
}

// visibleQuiz hides drafts from everyone but their owner.
func (e *Engine) visibleQuiz(ctx context.Context, learner auth.Session, quizID uuid.UUID) (*models.Quiz, error) {
	q, err := e.quizzes.Lookup(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.CanView(learner, q) {
		return nil, quiz.ErrQuizNotFound
	}
	return q, nil
}

// gate checks eligibility. Teachers are never locked out.
func (e *Engine) gate(ctx context.Context, learner auth.Session, quizID uuid.UUID) (Eligibility, error) {
	elig, err := e.Eligibility(ctx, learner.UserID, quizID)
	if err != nil {
		return Eligibility{}, err
	}
	if !elig.Eligible && !learner.IsTeacher() {
		return elig, &AttemptsExhaustedError{Eligibility: elig}
	}
	return elig, nil
}

// Begin checks eligibility and returns the quiz's questions in a fresh
// random order with the answers hidden. Nothing is stored.
func (e *Engine) Begin(ctx context.Context, learner auth.Session, quizID uuid.UUID) (*Sheet, error) {
	q, err := e.visibleQuiz(ctx, learner, quizID)
	if err != nil {
		return nil, err
	}
	elig, err := e.gate(ctx, learner, quizID)
	if err != nil {
		return nil, err
	}

	questions, err := e.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, &PersistenceError{Op: "load questions", Err: err}
	}
	order := append([]models.Question(nil), questions...)
	e.shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	return &Sheet{
		Quiz:        *q,
		Questions:   models.QuestionsToDTO(order, false),
		Eligibility: elig,
	}, nil
}

// Retake starts another attempt with a new ordering.
func (e *Engine) Retake(ctx context.Context, learner auth.Session, quizID uuid.UUID) (*Sheet, error) {
	return e.Begin(ctx, learner, quizID)
}

func (e *Engine) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
}

// Score counts exact matches between answers and the answer key. Missing
// answers are wrong.
func Score(questions []models.Question, answers map[string]string) (int, []Review) {
	score := 0
	review := make([]Review, len(questions))
	for i, q := range questions {
		submitted, ok := answers[q.ID.String()]
		correct := ok && submitted == q.Answer
		if correct {
			score++
		}
		review[i] = Review{
			QuestionID:  q.ID,
			Question:    q.Question,
			Submitted:   submitted,
			Answer:      q.Answer,
			Explanation: q.Explanation,
			Correct:     correct,
		}
	}
	return score, review
}

// Submit re-checks eligibility, scores answers against the quiz's current
// questions and appends the attempt record. If the record cannot be written
// the result is still returned, with Recorded unset, alongside a
// *PersistenceError.
func (e *Engine) Submit(ctx context.Context, learner auth.Session, quizID uuid.UUID, answers map[string]string) (*Result, error) {
	key := quizID.String() + ":" + learner.UserID.String()
	if !e.acquire(key) {
		return nil, ErrSubmissionInFlight
	}
	defer e.release(key)

	q, err := e.visibleQuiz(ctx, learner, quizID)
	if err != nil {
		return nil, err
	}
	elig, err := e.gate(ctx, learner, quizID)
	if err != nil {
		return nil, err
	}

	questions, err := e.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, &PersistenceError{Op: "load questions", Err: err}
	}

	score, review := Score(questions, answers)
	result := &Result{
		Score:          score,
		TotalQuestions: len(questions),
		PassingScore:   q.PassingScore,
		Passed:         score >= q.PassingScore,
		SubmittedAt:    e.clock.Now().UTC(),
		Review:         review,
		Eligibility:    elig,
	}

	if result.Passed {
		// Failures are logged by the marker and do not affect the result.
		_ = e.progress.Mark(ctx, learner.UserID, progress.KindQuizzes)
	}

	stored := make(datatypes.JSONMap, len(answers))
	for id, value := range answers {
		stored[id] = value
	}
	record := &models.QuizResponse{
		QuizID:      quizID,
		StudentID:   learner.UserID,
		Answers:     stored,
		Score:       score,
		Passed:      result.Passed,
		SubmittedAt: result.SubmittedAt,
	}
	if err := e.store.Insert(ctx, record); err != nil {
		e.logger.Warn("attempt not recorded",
			slog.String("quiz_id", quizID.String()),
			slog.String("learner_id", learner.UserID.String()),
			slog.Any("error", err))
		return result, &PersistenceError{Op: "record attempt", Err: err}
	}

	result.AttemptID = record.ID
	result.Recorded = true
	e.logger.Info("attempt recorded",
		slog.String("quiz_id", quizID.String()),
		slog.String("learner_id", learner.UserID.String()),
		slog.Int("score", score),
		slog.Bool("passed", result.Passed))

	recordID := quizID.String() + ":" + learner.UserID.String()
	e.publisher.Publish(websocket.Topic(responsesTable, recordID), websocket.Change{
		Table:    responsesTable,
		RecordID: recordID,
		Type:     websocket.ChangeInsert,
		Value:    record,
		At:       result.SubmittedAt,
	})

	if after, err := e.Eligibility(ctx, learner.UserID, quizID); err == nil {
		result.Eligibility = after
	}
	return result, nil
}

// History lists a learner's attempts on a quiz, newest first.
func (e *Engine) History(ctx context.Context, learnerID, quizID uuid.UUID) ([]models.QuizResponse, error) {
	attempts, err := e.store.ListAttempts(ctx, quizID, learnerID)
	if err != nil {
		return nil, &PersistenceError{Op: "read attempts", Err: err}
	}
	return attempts, nil
}
