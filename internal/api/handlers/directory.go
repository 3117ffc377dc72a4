package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/business"
	"github.com/hugh/poolparty/internal/gallery"
)

type BusinessHandler struct {
	service *business.Service
	logger  *slog.Logger
}

func NewBusinessHandler(service *business.Service, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{service: service, logger: logger}
}

func (h *BusinessHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), business.Filter{Category: q.Get("category"), Query: q.Get("q")})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, list, len(list))
}

func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req business.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.service.Create(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type GalleryHandler struct {
	service *gallery.Service
	logger  *slog.Logger
}

func NewGalleryHandler(service *gallery.Service, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{service: service, logger: logger}
}

func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := gallery.Filter{Category: q.Get("category")}
	if raw := q.Get("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid event_id"})
			return
		}
		filter.EventID = &id
	}

	items, err := h.service.List(r.Context(), middleware.GetClaims(r.Context()), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, items, len(items))
}

func (h *GalleryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req gallery.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.service.Create(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
