package middleware

import (
	"net/http"
	"strings"

	"github.com/ayush/flatblog/internal/auth"
	"github.com/ayush/flatblog/internal/logging"
)

// LoadIdentity resolves the session cookie, if any, and puts the identity
// into the request context. Anonymous requests pass through untouched.
func LoadIdentity(sessions auth.Sessions, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("session lookup failed")
				next.ServeHTTP(w, r)
				return
			}
			if identity == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireLogin stops anonymous requests before the handler runs. Browsers are
// redirected to loginPath, JSON clients get a 401.
func RequireLogin(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.FromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			if wantsJSON(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"errors":["Not authenticated."]}`))
				return
			}
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
		})
	}
}

func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
