package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/logging"
	"PropDashboards/internal/ports"
	"PropDashboards/internal/usecase"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed schema/generate_request.schema.json
var generateRequestSchema []byte

const shutdownTimeout = 10 * time.Second

// Generator runs a PNG batch and reports progress while it goes.
type Generator interface {
	Generate(ctx context.Context, req usecase.Request, progress func(domain.Progress)) (usecase.Result, error)
}

// Deps wires the web UI. Generator may be nil, which disables POST /api/generate.
type Deps struct {
	Source          ports.SnapshotSource
	Generator       Generator
	OutputDir       string
	DefaultCategory string
	Width           int
	Height          int
	Logger          *slog.Logger
}

// Server renders dashboards and exposes the JSON and SSE API.
type Server struct {
	source          ports.SnapshotSource
	generator       Generator
	outputDir       string
	defaultCategory string
	width           int
	height          int
	logger          *slog.Logger
	templates       *template.Template
	schema          *jsonschema.Schema
	handler         http.Handler
}

// New compiles templates and the request schema and builds the routes.
func New(deps Deps) (*Server, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(generateRequestSchema)
	if err != nil {
		return nil, fmt.Errorf("compile generate schema: %w", err)
	}

	s := &Server{
		source:          deps.Source,
		generator:       deps.Generator,
		outputDir:       deps.OutputDir,
		defaultCategory: deps.DefaultCategory,
		width:           deps.Width,
		height:          deps.Height,
		logger:          deps.Logger,
		templates:       tmpl,
		schema:          schema,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/category-data", s.handleCategoryData)
	mux.HandleFunc("GET /api/window", s.handleWindow)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/dashboards/{filename}", s.handleDashboardFile)
	mux.HandleFunc("GET /dashboard/{slug}", s.handleDashboardPage)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	s.handler = s.logRequests(mux)
	return s, nil
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}
