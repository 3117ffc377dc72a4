package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/events"
)

type EventHandler struct {
	service *events.Service
	logger  *slog.Logger
}

func NewEventHandler(service *events.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, list, len(list))
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.service.Get(r.Context(), chi.URLParam(r, "code"), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req events.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.Create(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "code")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Event deleted"})
}

func (h *EventHandler) Notify(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Notify(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, results, len(results))
}

func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	join, err := h.service.Join(r.Context(), middleware.GetClaims(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, join)
}
