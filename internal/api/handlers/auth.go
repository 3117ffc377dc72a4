package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/members"
)

type AuthHandler struct {
	authService   *auth.Service
	members       *members.Service
	sessionMaxAge time.Duration
	secureCookie  bool
	logger        *slog.Logger
}

func NewAuthHandler(authService *auth.Service, memberService *members.Service, sessionMaxAge time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		members:       memberService,
		sessionMaxAge: sessionMaxAge,
		secureCookie:  secureCookie,
		logger:        logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	resp, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionMaxAge.Seconds()),
	})

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// CheckMember tells the login page whether an email has an account.
func (h *AuthHandler) CheckMember(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exists, err := h.members.CheckMember(r.Context(), req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckMemberResponse{Exists: exists})
}
