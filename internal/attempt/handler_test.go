package attempt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilinna/clock"

	"bioboost/internal/auth"
	"bioboost/internal/models"
	"bioboost/internal/progress"
	"bioboost/internal/quiz"
	"bioboost/pkg/cache"
	"bioboost/pkg/database"
	"bioboost/pkg/websocket"
)

type stack struct {
	router   *mux.Router
	auth     *auth.Service
	quizzes  *quiz.Service
	progress *progress.Service
	clock    *clock.Mock
}

func newStack(t *testing.T) stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.AllModels()...))

	mr := miniredis.RunT(t)
	client := cache.NewRedisClient(mr.Addr())
	t.Cleanup(func() { client.Close() })

	hub := websocket.NewHub(logger)
	clk := clock.NewMock(t0)

	authService := auth.NewService(auth.NewRepository(db), "test-secret", 24*time.Hour, clk, hub, logger)
	quizService := quiz.NewService(quiz.NewRepository(db), cache.NewRedisCache(client, time.Minute), hub, logger)
	progressService := progress.NewService(progress.NewRedisStore(client), logger)
	engine := NewEngine(NewRepository(db), quizService, progressService, hub, clk, logger)

	router := mux.NewRouter()
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware(authService))
	NewHandler(engine, logger).RegisterRoutes(protected)

	return stack{router: router, auth: authService, quizzes: quizService, progress: progressService, clock: clk}
}

func (s stack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s stack) user(t *testing.T, email string, role models.Role) (auth.Session, string) {
	t.Helper()
	ctx := context.Background()
	session, err := s.auth.Register(ctx, auth.RegisterInput{Email: email, Password: "secret1", Role: role})
	require.NoError(t, err)
	token, _, err := s.auth.Login(ctx, email, "secret1")
	require.NoError(t, err)
	return session, token
}

func TestHandler_AttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	teacher, _ := s.user(t, "t@example.com", models.RoleTeacher)
	student, token := s.user(t, "s@example.com", models.RoleStudent)

	q, err := s.quizzes.CreateQuiz(ctx, teacher, quiz.QuizInput{Title: "Krebs", PassingScore: 2})
	require.NoError(t, err)
	var questions []*models.Question
	for _, answer := range []string{"true", "false", "true"} {
		question, err := s.quizzes.AddQuestion(ctx, teacher, q.ID, quiz.QuestionInput{Question: "Step?", Type: "tf", Answer: answer})
		require.NoError(t, err)
		questions = append(questions, question)
	}
	base := "/api/quizzes/" + q.ID.String()

	rec := s.do(t, http.MethodPost, base+"/attempts/begin", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, base+"/eligibility", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/quizzes/"+student.UserID.String()+"/eligibility", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err = s.quizzes.SetPublished(ctx, teacher, q.ID, true)
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, base+"/attempts/begin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sheet Sheet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sheet))
	assert.Len(t, sheet.Questions, 3)
	assert.NotContains(t, rec.Body.String(), `"answer"`)

	wrong := SubmitRequest{Answers: map[string]string{questions[0].ID.String(): "false"}}
	for i := 0; i < 3; i++ {
		rec = s.do(t, http.MethodPost, base+"/attempts", token, wrong)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		s.clock.Add(time.Second)
	}

	var result SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Score)
	assert.True(t, result.Recorded)
	assert.Equal(t, StateLocked, result.Eligibility.State)

	s.clock.Add(time.Minute)
	rec = s.do(t, http.MethodPost, base+"/attempts/retake", token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "239", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"cooldown_label":"3:59"`)

	rec = s.do(t, http.MethodGet, base+"/eligibility", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"attempt_count":3`)

	s.clock.Add(4 * time.Minute)
	right := SubmitRequest{Answers: map[string]string{
		questions[0].ID.String(): "true",
		questions[1].ID.String(): "false",
	}}
	rec = s.do(t, http.MethodPost, base+"/attempts", token, right)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Score)
	assert.True(t, result.Passed)

	record, err := s.progress.Get(ctx, student.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Quizzes)

	rec = s.do(t, http.MethodGet, base+"/attempts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.QuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 4)
	assert.True(t, history[0].Passed)
	assert.True(t, history[0].SubmittedAt.After(history[1].SubmittedAt))
}

func TestHandler_HistoryOfAnotherLearner(t *testing.T) {
	s := newStack(t)
	_, teacherToken := s.user(t, "t@example.com", models.RoleTeacher)
	student, studentToken := s.user(t, "s@example.com", models.RoleStudent)
	other, _ := s.user(t, "o@example.com", models.RoleStudent)

	path := "/api/quizzes/" + student.UserID.String() + "/attempts?learner=" + other.UserID.String()

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, studentToken, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, teacherToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/quizzes/x/attempts", studentToken, nil).Code)
}
