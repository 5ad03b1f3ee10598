package progress

import (
	"net/http"

	"github.com/gorilla/mux"

	"bioboost/internal/auth"
	"bioboost/internal/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/{kind}", h.MarkProgress).Methods("POST")
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rec, err := h.service.Get(r.Context(), session.UserID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Could not load progress")
		return
	}

	respond.JSON(w, http.StatusOK, rec.Summary())
}

func (h *Handler) MarkProgress(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	kind, err := ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Mark(r.Context(), session.UserID, kind); err != nil {
		respond.Error(w, http.StatusInternalServerError, "Could not save progress")
		return
	}

	rec, err := h.service.Get(r.Context(), session.UserID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Could not load progress")
		return
	}
	respond.JSON(w, http.StatusOK, rec.Summary())
}
