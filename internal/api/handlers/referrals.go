package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/referrals"
)

type ReferralHandler struct {
	service *referrals.Service
	logger  *slog.Logger
}

func NewReferralHandler(service *referrals.Service, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{service: service, logger: logger}
}

func (h *ReferralHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req referrals.SubmitInput
	if !decodeJSON(w, r, &req) {
		return
	}

	ref, err := h.service.Submit(r.Context(), middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ReferralStatus(strings.ToUpper(r.URL.Query().Get("status")))
	switch status {
	case "", models.ReferralStatusPending, models.ReferralStatusApproved, models.ReferralStatusRejected:
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status filter"})
		return
	}

	list, err := h.service.List(r.Context(), status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeList(w, list, len(list))
}

func (h *ReferralHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	ref, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *ReferralHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req referrals.DecideInput
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.service.Decide(r.Context(), middleware.GetClaims(r.Context()), id, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
