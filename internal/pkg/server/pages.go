package server

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/counter"
)

type loginData struct {
	Email string
	Next  string
	Error string
}

type dashboardData struct {
	User string
	Card counter.View
}

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	state := s.auth.Resolve(r.Context(), auth.TokenFromRequest(r, s.authCfg.CookieName))
	if state.User != nil {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login.html", loginData{Next: r.URL.Query().Get("next")})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	next := r.PostFormValue("next")

	session, err := s.auth.SignIn(r.Context(), email, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, http.StatusUnauthorized, "login.html", loginData{Email: email, Next: next, Error: "Invalid email or password."})
		return
	}
	if err != nil {
		s.logger.Error("sign in failed", zap.Error(err))
		s.render(w, http.StatusInternalServerError, "login.html", loginData{Email: email, Next: next, Error: "Sign in is unavailable, try again later."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.authCfg.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.authCfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r, s.authCfg.CookieName); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.logger.Warn("sign out failed", zap.Error(err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.authCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.authCfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (s *server) dashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	name := user.DisplayName
	if name == "" {
		name = user.Email
	}
	s.render(w, http.StatusOK, "dashboard.html", dashboardData{User: name, Card: counter.LoadingView()})
}

// safeNext only allows redirects back into this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return dashboardPath
	}
	return next
}
