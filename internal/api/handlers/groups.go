package handlers

import (
	"log/slog"
	"net/http"

	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/groups"
)

type GroupHandler struct {
	service *groups.Service
	logger  *slog.Logger
}

func NewGroupHandler(service *groups.Service, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{service: service, logger: logger}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, list, len(list))
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groups.Input
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req groups.Input
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Group deleted"})
}
