package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	CSRFCookieName = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF protects cookie sessions with a token derived from the session
// cookie: hex(HMAC-SHA256(secret, session)). Browsers read it from the
// csrf_token cookie and echo it in X-CSRF-Token on unsafe requests.
// Requests carrying an Authorization or X-Auth-Token header, or no session cookie, have no
// ambient credentials and are not checked.
func CSRF(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := r.Cookie(SessionCookie)
			if err != nil || session.Value == "" || r.Header.Get("Authorization") != "" || r.Header.Get(TokenHeader) != "" {
				next.ServeHTTP(w, r)
				return
			}

			expected := CSRFToken(secret, session.Value)

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				if c, err := r.Cookie(CSRFCookieName); err != nil || c.Value != expected {
					http.SetCookie(w, &http.Cookie{
						Name:     CSRFCookieName,
						Value:    expected,
						Path:     "/",
						HttpOnly: false, // read by the frontend
						Secure:   r.TLS != nil,
						SameSite: http.SameSiteStrictMode,
					})
				}
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(CSRFHeaderName)
			if provided == "" {
				writeError(w, http.StatusForbidden, "CSRF token missing")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				writeError(w, http.StatusForbidden, "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFToken is the token a browser holding session must send.
func CSRFToken(secret []byte, session string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(session))
	return hex.EncodeToString(mac.Sum(nil))
}
