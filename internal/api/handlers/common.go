package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/events"
	"github.com/hugh/poolparty/internal/gallery"
	"github.com/hugh/poolparty/internal/groups"
	"github.com/hugh/poolparty/internal/invites"
	"github.com/hugh/poolparty/internal/members"
	"github.com/hugh/poolparty/internal/referrals"
	"github.com/hugh/poolparty/internal/validation"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeList(w http.ResponseWriter, data interface{}, total int) {
	writeJSON(w, http.StatusOK, dto.ListResponse{Data: data, Total: total})
}

// decodeJSON reads a JSON body into v and answers 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters only where one error wraps another.
var errorMappings = []errorMapping{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized"},
	{auth.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{auth.ErrUserNotFound, http.StatusNotFound, "User not found"},

	{referrals.ErrNotFound, http.StatusNotFound, "Referral not found"},
	{referrals.ErrAlreadyProcessed, http.StatusConflict, "Referral has already been processed"},
	{referrals.ErrUserExists, http.StatusConflict, "A member with this email already exists"},
	{referrals.ErrPendingExists, http.StatusConflict, "A pending referral for this email already exists"},

	{invites.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired invitation"},
	{invites.ErrAlreadyActivated, http.StatusConflict, "Password already set, sign in instead"},
	{invites.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{invites.ErrUserExists, http.StatusConflict, "A member with this email already exists"},

	{members.ErrNotFound, http.StatusNotFound, "Member not found"},
	{members.ErrEmailInUse, http.StatusConflict, "Email is already in use"},
	{members.ErrSelfDelete, http.StatusBadRequest, "You cannot delete your own account here"},

	{groups.ErrNotFound, http.StatusNotFound, "Group not found"},
	{groups.ErrNameInUse, http.StatusConflict, "A group with this name already exists"},
	{groups.ErrUnknownIDs, http.StatusBadRequest, "One or more groups do not exist"},
	{groups.ErrNoUser, http.StatusNotFound, "Member not found"},

	{events.ErrNotFound, http.StatusNotFound, "Event not found"},
	{events.ErrNoTargets, http.StatusBadRequest, "Event has no target groups"},
	{events.ErrAlreadyJoined, http.StatusConflict, "Already joined this event"},

	{gallery.ErrEventNotFound, http.StatusBadRequest, "Event not found"},
}

// writeError maps a service error onto a status and a stable message.
// Unknown errors are logged and answered with 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fields validation.Errors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: fields})
		return
	}
	if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"password": err.Error()},
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeJSON(w, m.status, dto.ErrorResponse{Error: m.message})
			return
		}
	}

	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
}
