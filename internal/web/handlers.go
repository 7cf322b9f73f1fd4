package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/ports"
	"PropDashboards/internal/ranking"
	"PropDashboards/internal/usecase"
)

const maxRequestBody = 1 << 20

type categoryDataResponse struct {
	Category string              `json:"category"`
	Name     string              `json:"name"`
	Visitors int64               `json:"visitors"`
	Week     string              `json:"week"`
	Firms    []domain.FirmRecord `json:"firms"`
}

type windowResponse struct {
	Category string          `json:"category"`
	Week     string          `json:"week"`
	Firm     string          `json:"firm"`
	Above    int             `json:"above"`
	Below    int             `json:"below"`
	Mode     ranking.Mode    `json:"mode"`
	Window   []ranking.Entry `json:"window"`
}

type pageData struct {
	View   dashboard.View
	Width  int
	Height int
}

type indexData struct {
	Categories []domain.Category
	Current    domain.Category
	Week       string
	Firms      []domain.FirmRecord
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.source.Categories(),
		"default":    s.defaultCategory,
	})
}

func (s *Server) handleCategoryData(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.source.Load(r.Context(), s.categoryParam(r))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	firms := snapshot.Records
	if firms == nil {
		firms = []domain.FirmRecord{}
	}
	writeJSON(w, http.StatusOK, categoryDataResponse{
		Category: snapshot.Category.ID,
		Name:     snapshot.Category.Name,
		Visitors: snapshot.Category.Visitors,
		Week:     snapshot.Week,
		Firms:    firms,
	})
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	firm := strings.TrimSpace(q.Get("firm"))
	if firm == "" {
		writeError(w, http.StatusBadRequest, "firm is required")
		return
	}
	above, err := intParam(q.Get("above"), ranking.DefaultAbove)
	if err != nil {
		writeError(w, http.StatusBadRequest, "above must be an integer")
		return
	}
	below, err := intParam(q.Get("below"), ranking.DefaultBelow)
	if err != nil {
		writeError(w, http.StatusBadRequest, "below must be an integer")
		return
	}

	snapshot, err := s.source.Load(r.Context(), s.categoryParam(r))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	modeValue := q.Get("mode")
	if modeValue == "" {
		modeValue = snapshot.Category.Competitors
	}
	mode, err := ranking.ParseMode(modeValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	target, ok := snapshot.Find(firm)
	if !ok {
		target, ok = snapshot.FindSlug(firm)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "firm not found")
		return
	}

	window, err := ranking.Select(snapshot.Records, target, above, below)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, windowResponse{
		Category: snapshot.Category.ID,
		Week:     snapshot.Week,
		Firm:     target.Name,
		Above:    above,
		Below:    below,
		Mode:     mode,
		Window:   ranking.Present(window, target, mode),
	})
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.source.Load(r.Context(), s.categoryParam(r))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	target, ok := snapshot.FindSlug(r.PathValue("slug"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	mode, err := ranking.ParseMode(snapshot.Category.Competitors)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	opts := dashboard.DefaultOptions()
	opts.Mode = mode
	view, err := dashboard.Build(snapshot, target, opts)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.renderHTML(w, "dashboard.html", pageData{View: view, Width: s.width, Height: s.height})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.source.Load(r.Context(), s.categoryParam(r))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.renderHTML(w, "index.html", indexData{
		Categories: s.source.Categories(),
		Current:    snapshot.Category,
		Week:       snapshot.Week,
		Firms:      snapshot.Records,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "generation is disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}
	if !json.Valid(payload) {
		writeError(w, http.StatusBadRequest, "decode request JSON")
		return
	}
	if result := s.schema.ValidateJSON(payload); !result.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", result.Errors))
		return
	}

	var req usecase.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request JSON")
		return
	}
	if req.Category == "" {
		req.Category = s.defaultCategory
	}

	stream, err := newEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("generation requested", "category", req.Category, "firms", len(req.Firms), "force", req.Force)
	if _, err := s.generator.Generate(r.Context(), req, stream.send); err != nil {
		s.logger.Warn("generation aborted", "category", req.Category, "err", err)
		stream.send(domain.Progress{Type: domain.ProgressError, Error: err.Error()})
	}
}

func (s *Server) handleDashboardFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	f, err := os.Open(filepath.Join(s.outputDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "dashboard not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "open dashboard")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "dashboard not found")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) categoryParam(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		return c
	}
	return s.defaultCategory
}

func (s *Server) renderHTML(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template", "template", name, "err", err)
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory), errors.Is(err, ranking.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func intParam(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(encoded, '\n'))
}
