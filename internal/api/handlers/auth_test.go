package handlers_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/poolparty/internal/api/dto"
	"github.com/hugh/poolparty/internal/api/handlers"
	"github.com/hugh/poolparty/internal/api/middleware"
	"github.com/hugh/poolparty/internal/auth"
	"github.com/hugh/poolparty/internal/database/models"
	"github.com/hugh/poolparty/internal/members"
	"github.com/hugh/poolparty/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	authService := auth.NewService(tc.DB, tc.JWTService)
	handler := handlers.NewAuthHandler(authService, members.NewService(tc.DB, tc.Logger), tc.JWTService.Expiry(), false, quietLogger())

	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", handler.Login)
	r.Post("/api/v1/auth/logout", handler.Logout)
	r.Post("/api/v1/auth/check-member", handler.CheckMember)
	r.With(middleware.Auth(tc.JWTService)).Get("/api/v1/me", handler.Me)

	return r, tc
}

func TestAuthHandler_Login(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	t.Run("successful login", func(t *testing.T) {
		body := map[string]string{
			"email":    tc.Member.Email,
			"password": testutil.TestPassword,
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp dto.AuthResponse
		err := json.Unmarshal(rr.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, tc.Member.Email, resp.User.Email)
		assert.Equal(t, models.RoleMember, resp.User.Role)

		var session *http.Cookie
		for _, c := range rr.Result().Cookies() {
			if c.Name == middleware.SessionCookie {
				session = c
			}
		}
		require.NotNil(t, session)
		assert.Equal(t, resp.Token, session.Value)
		assert.True(t, session.HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		body := map[string]string{
			"email":    tc.Member.Email,
			"password": "wrongpassword",
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown email looks the same", func(t *testing.T) {
		body := map[string]string{
			"email":    "nobody@example.com",
			"password": "whatever123",
		}

		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Invalid credentials", resp.Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/login", map[string]string{})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "email")
		assert.Contains(t, resp.Details, "password")
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/logout", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthHandler_Me(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/me", nil, tc.AdminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	var user dto.UserDTO
	testutil.ParseJSONResponse(t, rr, &user)
	assert.Equal(t, tc.Admin.ID.String(), user.ID)
	assert.Equal(t, models.RoleAdmin, user.Role)

	req = testutil.UnauthenticatedRequest(t, "GET", "/api/v1/me", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestAuthHandler_CheckMember(t *testing.T) {
	router, tc := setupAuthTestRouter(t)
	defer tc.Cleanup()

	tests := []struct {
		name   string
		email  string
		status int
		exists bool
	}{
		{"existing member", tc.Member.Email, http.StatusOK, true},
		{"unknown email", "stranger@example.com", http.StatusOK, false},
		{"invalid email", "nope", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/check-member", map[string]string{"email": tt.email})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			testutil.AssertStatus(t, rr, tt.status)
			if tt.status == http.StatusOK {
				var resp dto.CheckMemberResponse
				testutil.ParseJSONResponse(t, rr, &resp)
				assert.Equal(t, tt.exists, resp.Exists)
			}
		})
	}
}
