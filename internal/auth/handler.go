package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/validation"
)

// AdminHome is where an already authenticated caller is sent.
const AdminHome = "/api/admin/posts"

const msgInvalidCredentials = "Invalid username or password."

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func writeErrors(w http.ResponseWriter, status int, messages ...string) {
	writeJSON(w, status, map[string][]string{"errors": messages})
}

// writeServiceError maps Service errors to responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if msgs := validation.Messages(err); msgs != nil {
		writeErrors(w, http.StatusBadRequest, msgs...)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidToken):
		writeErrors(w, http.StatusBadRequest, "Invalid or expired token.")
	case errors.Is(err, ErrUserNotFound):
		writeErrors(w, http.StatusNotFound, "User not found.")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("auth request failed")
		writeErrors(w, http.StatusInternalServerError, "Could not save your changes. Please try again.")
	}
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc      *Service
	sessions Sessions
	cookie   CookieConfig
}

func NewHandler(svc *Service, sessions Sessions, cookie CookieConfig) *Handler {
	return &Handler{svc: svc, sessions: sessions, cookie: cookie}
}

// redirectIfLoggedIn answers authenticated callers with the admin location
// and reports whether it did.
func redirectIfLoggedIn(w http.ResponseWriter, r *http.Request) bool {
	if FromContext(r.Context()) == nil {
		return false
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": AdminHome})
	return true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

// Login authenticates a user or the admin and creates a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	identity, ok := h.svc.AttemptLogin(r.Context(), req.Username, req.Password)
	if !ok {
		writeErrors(w, http.StatusUnauthorized, msgInvalidCredentials)
		return
	}

	sid, err := h.sessions.Create(r.Context(), identity)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("session creation failed")
		writeErrors(w, http.StatusInternalServerError, "Could not start a session.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cookie.TTL / time.Second),
	})
	writeJSON(w, http.StatusOK, identity)
}

// Logout destroys the current session and expires the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie.Name); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("session delete failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

// Me returns the identity bound to the session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := FromContext(r.Context())
	if identity == nil {
		writeErrors(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// Register creates a new user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. You can sign in now.",
		"user":    user.Public(),
	})
}

// Forgot issues a reset link for the given username.
func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	var req models.ForgotRequest
	if !decode(w, r, &req) {
		return
	}

	link, err := h.svc.RequestReset(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrStorage) {
			writeErrors(w, http.StatusInternalServerError, "Could not generate the reset link.")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Reset link generated (expires in 30 minutes).",
		"reset_link": link.Link,
		"expires_at": link.ExpiresAt.Unix(),
	})
}

// CheckReset reports whether the token in the query string is still usable.
func (h *Handler) CheckReset(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	record, err := h.svc.CheckResetToken(r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":      true,
		"type":       record.Type,
		"expires_at": record.ExpiresAt,
	})
}

// Reset sets a new password and consumes the token.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if redirectIfLoggedIn(w, r) {
		return
	}
	var req models.ResetRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}

	if err := h.svc.ResetPassword(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated. You can sign in now."})
}
