package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/invites"
)

type InviteHandler struct {
	store   *invites.Store
	service *invites.Service
	logger  *slog.Logger
}

func NewInviteHandler(store *invites.Store, service *invites.Service, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{store: store, service: service, logger: logger}
}

// Inspect shows who an invitation is for before the password is chosen.
func (h *InviteHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	inv, err := h.store.Inspect(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.InvitationResponse{Email: inv.Email, Name: inv.Name, Expires: inv.Expires})
}

func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req dto.RedeemInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.Redeem(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("invitation redeemed", "user_id", user.ID)
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Create invites a person directly, without a referral.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invites.InviteInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.InviteMember(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
