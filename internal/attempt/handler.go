package attempt

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bioboost/internal/auth"
	"bioboost/internal/quiz"
	"bioboost/internal/respond"
)

type Handler struct {
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

type SubmitRequest struct {
	Answers map[string]string `json:"answers"`
}

// SubmitResponse carries a warning when the attempt was scored but not stored.
type SubmitResponse struct {
	*Result
	Warning string `json:"warning,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var exhausted *AttemptsExhaustedError
	var persist *PersistenceError
	switch {
	case errors.As(err, &exhausted):
		w.Header().Set("Retry-After", strconv.Itoa(exhausted.CooldownRemaining()))
		respond.ErrorWith(w, http.StatusTooManyRequests, exhausted.Error(), map[string]any{
			"attempt_count":      exhausted.Eligibility.AttemptCount,
			"cooldown_remaining": exhausted.CooldownRemaining(),
			"cooldown_label":     exhausted.Eligibility.CooldownLabel(),
		})
	case errors.Is(err, quiz.ErrQuizNotFound):
		respond.Error(w, http.StatusNotFound, "Quiz not found")
	case errors.Is(err, ErrSubmissionInFlight):
		respond.Error(w, http.StatusConflict, err.Error())
	case errors.As(err, &persist):
		h.logger.Error(op, slog.String("op", persist.Op), slog.Any("error", persist.Err))
		respond.Error(w, http.StatusInternalServerError, "Attempt data is unavailable")
	default:
		h.logger.Error(op, slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

func quizID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

func (h *Handler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := quizID(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	elig, err := h.engine.QuizEligibility(r.Context(), session, id)
	if err != nil {
		h.writeError(w, "eligibility", err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"eligibility":    elig,
		"cooldown_label": elig.CooldownLabel(),
	})
}

func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := quizID(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	sheet, err := h.engine.Begin(r.Context(), session, id)
	if err != nil {
		h.writeError(w, "begin attempt", err)
		return
	}
	respond.JSON(w, http.StatusOK, sheet)
}

func (h *Handler) Retake(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := quizID(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	sheet, err := h.engine.Retake(r.Context(), session, id)
	if err != nil {
		h.writeError(w, "retake", err)
		return
	}
	respond.JSON(w, http.StatusOK, sheet)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := quizID(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	var req SubmitRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	result, err := h.engine.Submit(r.Context(), session, id, req.Answers)
	var persist *PersistenceError
	if result != nil && errors.As(err, &persist) {
		respond.JSON(w, http.StatusOK, SubmitResponse{
			Result:  result,
			Warning: "Your score was calculated but the attempt may not have been recorded",
		})
		return
	}
	if err != nil {
		h.writeError(w, "submit attempt", err)
		return
	}
	respond.JSON(w, http.StatusCreated, SubmitResponse{Result: result})
}

// History lists the caller's attempts. Teachers may pass ?learner=<id> to
// see someone else's.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFrom(r.Context())
	id, ok := quizID(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "Invalid quiz id")
		return
	}

	learnerID := session.UserID
	if raw := r.URL.Query().Get("learner"); raw != "" {
		if !session.IsTeacher() {
			respond.Error(w, http.StatusForbidden, "Forbidden")
			return
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "Invalid learner id")
			return
		}
		learnerID = parsed
	}

	attempts, err := h.engine.History(r.Context(), learnerID, id)
	if err != nil {
		h.writeError(w, "attempt history", err)
		return
	}
	respond.JSON(w, http.StatusOK, attempts)
}

func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/quizzes/{id}/eligibility", h.GetEligibility).Methods("GET")
	protected.HandleFunc("/quizzes/{id}/attempts/begin", h.Begin).Methods("POST")
	protected.HandleFunc("/quizzes/{id}/attempts/retake", h.Retake).Methods("POST")
	protected.HandleFunc("/quizzes/{id}/attempts", h.Submit).Methods("POST")
	protected.HandleFunc("/quizzes/{id}/attempts", h.History).Methods("GET")
}
