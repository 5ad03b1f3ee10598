// internal/quiz/handler.go
package quiz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bioboost/internal/auth"
	"bioboost/internal/models"
	"bioboost/internal/respond"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type PublishRequest struct {
	Published *bool `json:"published"`
}

func pathID(r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	return id, err == nil
}

// writeError maps service errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.ErrorWith(w, http.StatusBadRequest, verr.Error(), map[string]any{
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, ErrQuizNotFound):
		respond.Error(w, http.StatusNotFound, "Quiz not found")
	case errors.Is(err, ErrQuestionNotFound):
		respond.Error(w, http.StatusNotFound, "Question not found")
	case errors.Is(err, ErrNotOwner):
		respond.Error(w, http.StatusForbidden, "Not the owner of this quiz")
	default:
		h.logger.Error(op, slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ListQuizzes returns the caller's own quizzes for teachers and the
// published catalog for everyone else.
func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	list := h.service.ListPublished
	if session.IsTeacher() {
		list = func(ctx context.Context) ([]models.Quiz, error) {
			return h.service.ListTeacherQuizzes(ctx, session.UserID)
		}
	}
	quizzes, err := list(r.Context())
	if err != nil {
		h.writeError(w, "list quizzes", err)
		return
	}
	respond.JSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	quiz, err := h.service.GetQuiz(r.Context(), session, id)
	if err != nil {
		h.writeError(w, "get quiz", err)
		return
	}
	respond.JSON(w, http.StatusOK, quiz)
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())

	var req QuizInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	quiz, err := h.service.CreateQuiz(r.Context(), session, req)
	if err != nil {
		h.writeError(w, "create quiz", err)
		return
	}
	respond.JSON(w, http.StatusCreated, quiz)
}

func (h *Handler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	var req QuizInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	quiz, err := h.service.UpdateQuiz(r.Context(), session, id, req)
	if err != nil {
		h.writeError(w, "update quiz", err)
		return
	}
	respond.JSON(w, http.StatusOK, quiz)
}

// PublishQuiz publishes the quiz, or unpublishes it with {"published": false}.
func (h *Handler) PublishQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	var req PublishRequest
	if err := respond.Decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}
	published := true
	if req.Published != nil {
		published = *req.Published
	}

	quiz, err := h.service.SetPublished(r.Context(), session, id, published)
	if err != nil {
		h.writeError(w, "publish quiz", err)
		return
	}
	respond.JSON(w, http.StatusOK, quiz)
}

func (h *Handler) DeleteQuiz(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	if err := h.service.DeleteQuiz(r.Context(), session, id); err != nil {
		h.writeError(w, "delete quiz", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	quizID, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	var req QuestionInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	question, err := h.service.AddQuestion(r.Context(), session, quizID, req)
	if err != nil {
		h.writeError(w, "add question", err)
		return
	}
	respond.JSON(w, http.StatusCreated, question.ToDTO(true))
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	var req QuestionInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	question, err := h.service.UpdateQuestion(r.Context(), session, id, req)
	if err != nil {
		h.writeError(w, "update question", err)
		return
	}
	respond.JSON(w, http.StatusOK, question.ToDTO(true))
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	if err := h.service.DeleteQuestion(r.Context(), session, id); err != nil {
		h.writeError(w, "delete question", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes mounts the read routes on protected and the authoring
// routes on teacher, which must only admit teachers.
func (h *Handler) RegisterRoutes(protected, teacher *mux.Router) {
	protected.HandleFunc("/quizzes", h.ListQuizzes).Methods("GET")
	protected.HandleFunc("/quizzes/{id}", h.GetQuiz).Methods("GET")

	teacher.HandleFunc("/quizzes", h.CreateQuiz).Methods("POST")
	teacher.HandleFunc("/quizzes/{id}", h.UpdateQuiz).Methods("PUT")
	teacher.HandleFunc("/quizzes/{id}", h.DeleteQuiz).Methods("DELETE")
	teacher.HandleFunc("/quizzes/{id}/publish", h.PublishQuiz).Methods("POST")
	teacher.HandleFunc("/quizzes/{id}/questions", h.AddQuestion).Methods("POST")
	teacher.HandleFunc("/questions/{id}", h.UpdateQuestion).Methods("PUT")
	teacher.HandleFunc("/questions/{id}", h.DeleteQuestion).Methods("DELETE")
}
