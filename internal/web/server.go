package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// NewServer creates and configures the HTTP server for the Lector UI and API.
func NewServer(db *sql.DB, cfg *config.Config, deps ops.Deps, version string) *http.Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		deps:     deps,
		renderer: NewRenderer(mustSub(templateFS, "templates"), version),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter wires routes and middleware onto a chi router.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	// Pages
	r.Get("/", h.HandleIndex)
	r.Get("/items/{id}", h.HandleDetail)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(mustSub(staticFS, "static"))))

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Get("/items", h.HandleListItems)
		r.Get("/items/{id}", h.HandleGetItem)
		r.Delete("/items/{id}", h.HandleDeleteItem)
		r.Post("/sync", h.HandleSync)
		r.Post("/process", h.HandleProcess)
		r.Get("/settings", h.HandleGetSettings)
		r.Post("/settings", h.HandleUpdateSettings)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, errors.NewNotFound("route", r.URL.Path))
		})
	})

	// Health check endpoint
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.renderer.renderError(w, req, errors.NewNotFound("page", req.URL.Path))
	})

	return r
}

// mustSub strips a directory prefix from an embedded FS. The prefixes are
// compile-time constants, so failure is a programming error.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("embedded %s: %v", dir, err))
	}
	return sub
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logrus.WithField("addr", srv.Addr).Infof("Lector running at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logrus.Warn("Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logrus.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
