package parser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"PropDashboards/internal/config"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/ingest"
	"PropDashboards/internal/ports"
)

// CategorySource implements SnapshotSource over the weekly CSV files of
// configured categories.
type CategorySource struct {
	registry   *ingest.Registry
	dataDir    string
	week       string
	categories map[string]config.CategoryConfig
	logger     *slog.Logger
}

var _ ports.SnapshotSource = (*CategorySource)(nil)

// NewCategorySource wires the parser registry with config-defined categories.
func NewCategorySource(reg *ingest.Registry, cfg config.Config, log *slog.Logger) *CategorySource {
	return &CategorySource{
		registry:   reg,
		dataDir:    cfg.Data.Dir,
		week:       cfg.Week,
		categories: cfg.Categories,
		logger:     log,
	}
}

// NewDefaultRegistry returns a registry with every built-in parser.
func NewDefaultRegistry() *ingest.Registry {
	reg := ingest.NewRegistry()
	reg.Register(WeeklyCSV{})
	return reg
}

// Load reads and validates the snapshot of one category.
func (s *CategorySource) Load(ctx context.Context, category string) (domain.Snapshot, error) {
	if s.registry == nil {
		return domain.Snapshot{}, fmt.Errorf("parser registry is not configured")
	}
	cat, ok := s.categories[category]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("load %q: %w", category, domain.ErrUnknownCategory)
	}

	parser, err := s.registry.Resolve(cat.Format)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("category %s: %w", category, err)
	}

	path := filepath.Join(s.dataDir, cat.CSVFile)
	s.debug("load snapshot", "category", category, "path", path, "parser", parser.Name())

	f, err := os.Open(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	meta := toDomainCategory(category, cat)
	records, err := parser.Parse(ctx, f, ingest.Request{Category: meta, Week: s.week, Source: cat.CSVFile})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse snapshot %s: %w", category, err)
	}

	snap := domain.Snapshot{Category: meta, Week: s.week, Records: records}
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("validate snapshot %s: %w", category, err)
	}
	s.debug("snapshot loaded", "category", category, "records", len(records))
	return snap, nil
}

// Categories lists the configured categories sorted by id.
func (s *CategorySource) Categories() []domain.Category {
	cfg := config.Config{Categories: s.categories}
	out := make([]domain.Category, 0, len(s.categories))
	for _, id := range cfg.CategoryIDs() {
		out = append(out, toDomainCategory(id, s.categories[id]))
	}
	return out
}

func toDomainCategory(id string, cat config.CategoryConfig) domain.Category {
	name := cat.Name
	if name == "" {
		name = id
	}
	return domain.Category{
		ID:          id,
		Name:        name,
		Visitors:    cat.Visitors,
		Competitors: cat.Competitors,
	}
}

func (s *CategorySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
