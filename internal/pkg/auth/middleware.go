package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
)

type userKey struct{}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user put there by Middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey{}).(*model.User)
	return u, ok && u != nil
}

// TokenFromRequest reads the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Middleware gates page routes: without a session the visitor is sent to
// loginPath and the wrapped handler never runs.
func Middleware(m *Manager, cookieName, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := m.Resolve(r.Context(), TokenFromRequest(r, cookieName))
			gate := &Gate{}
			if gate.Observe(state) != ActionRender {
				target := loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), state.User)))
		})
	}
}

// APIMiddleware is Middleware for JSON routes: it answers 401 instead of
// redirecting.
func APIMiddleware(m *Manager, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := m.Resolve(r.Context(), TokenFromRequest(r, cookieName))
			if state.User == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"no session"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), state.User)))
		})
	}
}
