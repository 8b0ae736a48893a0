package middleware

import (
	"net/http"
	"strings"

	"limstreat/internal/session"
)

// Session makes sure every page request carries a known session token and
// adds it to the request context. Unknown or missing cookies get a new session.
func Session(m *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStatelessEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := session.TokenFromRequest(r)
			if !ok || !m.Touch(token) {
				token = m.Create()
				http.SetCookie(w, session.Cookie(token))
			}

			ctx := session.WithToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isStatelessEndpoint(path string) bool {
	if path == "/healthz" || path == "/mcp" {
		return true
	}
	prefixPaths := []string{"/api/", "/media/", "/mcp/"}
	for _, p := range prefixPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
