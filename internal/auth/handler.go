// internal/auth/handler.go
package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bioboost/internal/respond"
	"bioboost/pkg/websocket"
)

// Subscriber is the part of the hub the session feed listens on.
type Subscriber interface {
	Subscribe(topic string) (<-chan websocket.Change, func())
}

type Handler struct {
	service *Service
	feed    Subscriber
	logger  *slog.Logger
}

func NewHandler(service *Service, feed Subscriber, logger *slog.Logger) *Handler {
	return &Handler{service: service, feed: feed, logger: logger}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	session, err := h.service.Register(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrEmailTaken):
		respond.Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("register", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	respond.JSON(w, http.StatusCreated, session)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	token, session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "Login failed")
		return
	}

	respond.JSON(w, http.StatusOK, LoginResponse{Token: token, Session: session})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"session":      session,
		"display_name": session.DisplayName(),
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid profile id")
		return
	}

	var patch ProfilePatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid request")
		return
	}

	session, err := h.service.UpdateProfile(r.Context(), actor, userID, patch)
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		respond.Error(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, ErrUserNotFound):
		respond.Error(w, http.StatusNotFound, "Profile not found")
	case err != nil:
		h.logger.Error("update profile", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "Could not update profile")
	default:
		respond.JSON(w, http.StatusOK, session)
	}
}

// SessionFeed streams the caller's session, re-sent whenever a profile
// change is folded into it.
func (h *Handler) SessionFeed(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	session, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	// Subscribe before the snapshot so no change slips in between.
	changes, cancel := h.feed.Subscribe(websocket.Topic(profilesTable, session.UserID.String()))
	defer cancel()

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("session feed upgrade", slog.Any("error", err))
		return
	}
	feed := websocket.NewFeedConn(conn)
	defer feed.Close()

	state := NewSessionState(session)
	if err := feed.Send("session", state.Snapshot()); err != nil {
		return
	}

	closed := feed.Serve()
	for {
		select {
		case <-closed:
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if !state.Apply(change) {
				continue
			}
			if err := feed.Send("session", state.Snapshot()); err != nil {
				h.logger.Warn("session feed write", slog.Any("error", err))
				return
			}
		}
	}
}

func (h *Handler) RegisterRoutes(public, protected *mux.Router) {
	public.HandleFunc("/auth/register", h.Register).Methods("POST", "OPTIONS")
	public.HandleFunc("/auth/login", h.Login).Methods("POST", "OPTIONS")

	protected.HandleFunc("/auth/session", h.GetSession).Methods("GET")
	protected.HandleFunc("/profiles/{id}", h.UpdateProfile).Methods("PATCH")
}
