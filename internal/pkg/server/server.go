// Package server is the dashboard's HTTP surface: login pages, the gated
// dashboard, the counter websocket and a small JSON API.
package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/auth"
	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/metrics"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type server struct {
	store   realtime.Store
	auth    *auth.Manager
	httpCfg *config.HTTPConfig
	authCfg *config.AuthConfig
	logger  *zap.Logger
}

func New(store realtime.Store, manager *auth.Manager, httpCfg *config.HTTPConfig, authCfg *config.AuthConfig) *server {
	return &server{
		store:   store,
		auth:    manager,
		httpCfg: httpCfg,
		authCfg: authCfg,
		logger:  zap.L(),
	}
}

// Router builds the route table.
func (s *server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)

	pages := auth.Middleware(s.auth, s.authCfg.CookieName, loginPath)
	api := auth.APIMiddleware(s.auth, s.authCfg.CookieName)
	limiter := httprate.LimitByIP(s.httpCfg.LoginRateLimit, time.Minute)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dashboardPath, http.StatusFound)
	}).Methods(http.MethodGet)
	r.HandleFunc(loginPath, s.loginPage).Methods(http.MethodGet)
	r.Handle(loginPath, limiter(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	r.Handle(dashboardPath, pages(http.HandlerFunc(s.dashboard))).Methods(http.MethodGet)
	r.Handle("/ws/counter", pages(http.HandlerFunc(s.counterSocket))).Methods(http.MethodGet)
	r.Handle("/api/commands/reset", api(http.HandlerFunc(s.reset))).Methods(http.MethodPost)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	return r
}

func (s *server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template", zap.String("template", name), zap.Error(err))
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
