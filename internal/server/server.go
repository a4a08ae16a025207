// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bryan-buckman/spacetraveling/internal/database"
	"github.com/bryan-buckman/spacetraveling/internal/generate"
	"github.com/bryan-buckman/spacetraveling/internal/model"
	"github.com/bryan-buckman/spacetraveling/internal/prismic"
	"github.com/bryan-buckman/spacetraveling/internal/render"
)

// Posts serves listing pages to the JSON API.
type Posts interface {
	Home(ctx context.Context) (model.PostPage, error)
	NextPage(ctx context.Context, pageURL string) (model.PostPage, error)
}

// Options tune the server.
type Options struct {
	// FallbackWait is how long a request for an ungenerated post waits before
	// the loading page is served.
	FallbackWait time.Duration
}

// Server is the main HTTP server.
type Server struct {
	posts     Posts
	generator *generate.Generator
	renderer  *render.Renderer
	store     database.Store
	opts      Options
	logger    *slog.Logger
	router    chi.Router
}

// New creates a new server.
func New(posts Posts, generator *generate.Generator, renderer *render.Renderer, store database.Store, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		posts:     posts,
		generator: generator,
		renderer:  renderer,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(render.Static()))))

	// Pages.
	r.Get("/", s.handleHome)
	r.Get("/page/{n}", s.handleListingPage)
	r.Get("/post/{uid}", s.handlePost)
	r.Get(model.PathFeed, s.handleFeed)
	r.Get("/healthz", s.handleHealth)

	// API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", s.handleAPIPosts)
	})

	r.NotFound(s.handleNotFound)

	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server starting", "addr", addr, "database", s.store.DatabaseType())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server stopping")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Page Handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.serveListing(w, r, 0)
}

func (s *Server) handleListingPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > s.generator.MaxPages() {
		s.handleNotFound(w, r)
		return
	}
	s.serveListing(w, r, n)
}

func (s *Server) serveListing(w http.ResponseWriter, r *http.Request, n int) {
	page, err := s.generator.ListingPage(r.Context(), n)
	if err != nil {
		s.handleGenerateError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	outcome, err := s.generator.Resolve(r.Context(), uid, s.opts.FallbackWait)
	if err != nil {
		s.handleGenerateError(w, r, err)
		return
	}
	if outcome.State == model.NotYetLoaded {
		body, err := s.renderer.Loading(1)
		if err != nil {
			s.handleGenerateError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		s.render(w, http.StatusOK, body)
		return
	}
	writePage(w, outcome.Page)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := s.generator.Feed(r.Context())
	if err != nil {
		s.handleGenerateError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderer.NotFound()
	if err != nil {
		s.logger.Error("render not found", "error", err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.render(w, http.StatusNotFound, body)
}

// handleGenerateError maps generation failures to a page. Content-API
// failures are 502; anything else is 500.
func (s *Server) handleGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, generate.ErrPageOutOfRange) {
		s.handleNotFound(w, r)
		return
	}
	status, message := http.StatusInternalServerError, "Algo deu errado. Tente novamente mais tarde."
	if isUpstream(err) {
		status, message = http.StatusBadGateway, "O conteúdo está indisponível no momento."
	}
	s.logger.Error("page failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	body, renderErr := s.renderer.Error(status, message)
	if renderErr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	s.render(w, status, body)
}

// --- API Handlers ---

func (s *Server) handleAPIPosts(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	var (
		page model.PostPage
		err  error
	)
	if next == "" {
		page, err = s.posts.Home(r.Context())
	} else {
		page, err = s.posts.NextPage(r.Context(), next)
	}
	if err != nil {
		if errors.Is(err, prismic.ErrForeignCursor) {
			writeError(w, http.StatusBadRequest, "BAD_CURSOR", "next is not a page of this blog")
			return
		}
		s.logger.Error("list posts failed", "next", next != "", "error", err)
		if isUpstream(err) {
			writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "content API unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Database  string            `json:"database"`
	LastBuild string            `json:"last_build,omitempty"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy", Database: s.store.DatabaseType(), Checks: map[string]string{}}
	lastBuild, err := s.store.GetSetting(model.SettingLastBuild)
	switch {
	case err == nil:
		resp.LastBuild = lastBuild
		resp.Checks["database"] = "ok"
	case errors.Is(err, database.ErrNotFound):
		resp.Checks["database"] = "ok"
	default:
		s.logger.Error("health check failed", "error", err)
		resp.Checks["database"] = "unhealthy"
		resp.Status = "unhealthy"
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// --- Helpers ---

func (s *Server) render(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", generate.ContentTypeHTML)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

func writePage(w http.ResponseWriter, page *model.Page) {
	w.Header().Set("Content-Type", page.ContentType)
	w.WriteHeader(page.Status)
	_, _ = w.Write(page.Body)
}

func isUpstream(err error) bool {
	var fetchErr *prismic.FetchError
	var parseErr *prismic.ParseError
	return errors.As(err, &fetchErr) || errors.As(err, &parseErr)
}
