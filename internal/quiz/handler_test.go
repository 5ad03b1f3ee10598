package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioboost/internal/auth"
	"bioboost/internal/models"
)

func newRouter(f fixture) *mux.Router {
	h := NewHandler(f.service, discardLogger())

	router := mux.NewRouter()
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware(f.auth))
	teacher := router.PathPrefix("/api").Subrouter()
	teacher.Use(auth.JWTMiddleware(f.auth), auth.RequireRole(models.RoleTeacher))
	h.RegisterRoutes(protected, teacher)
	return router
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AuthoringFlow(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	f.register(t, "t@example.com", models.RoleTeacher)
	f.register(t, "s@example.com", models.RoleStudent)
	teacher := f.login(t, "t@example.com")
	student := f.login(t, "s@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/quizzes", student, QuizInput{Title: "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/quizzes", teacher, QuizInput{Title: "Krebs basics", PassingScore: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quiz models.Quiz
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quiz))

	rec = doJSON(t, router, http.MethodPost, "/api/quizzes/"+quiz.ID.String()+"/questions", teacher,
		mcq("First product?", "Citrate", "Citrate", "Malate"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var question models.QuestionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &question))
	assert.Equal(t, 1, question.Order)

	rec = doJSON(t, router, http.MethodGet, "/api/quizzes/"+quiz.ID.String(), student, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/quizzes/"+quiz.ID.String()+"/publish", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/quizzes/"+quiz.ID.String(), student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.QuizWithQuestions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Questions, 1)
	assert.Empty(t, view.Questions[0].Answer)

	rec = doJSON(t, router, http.MethodGet, "/api/quizzes", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog []models.Quiz
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	assert.Len(t, catalog, 1)

	rec = doJSON(t, router, http.MethodPost, "/api/quizzes/"+quiz.ID.String()+"/publish", teacher, PublishRequest{Published: new(bool)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/questions/"+question.ID.String(), teacher, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/quizzes/"+quiz.ID.String(), teacher, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_ValidationAndOwnershipErrors(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	owner := f.register(t, "t@example.com", models.RoleTeacher)
	f.register(t, "other@example.com", models.RoleTeacher)
	ownerToken := f.login(t, "t@example.com")
	otherToken := f.login(t, "other@example.com")

	quiz, err := f.service.CreateQuiz(context.Background(), owner, QuizInput{Title: "Cycle"})
	require.NoError(t, err)
	path := "/api/quizzes/" + quiz.ID.String()

	rec := doJSON(t, router, http.MethodPost, path+"/questions", ownerToken,
		QuestionInput{Question: "Makes NADH?", Type: "tf", Answer: "yes"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"answer"`)

	rec = doJSON(t, router, http.MethodPut, path, otherToken, QuizInput{Title: "Mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/quizzes/not-a-uuid", ownerToken, QuizInput{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/questions/"+quiz.ID.String(), ownerToken,
		mcq("Q", "a", "a", "b"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
