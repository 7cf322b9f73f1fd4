package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/fingerprint"
	"PropDashboards/internal/logging"
	"PropDashboards/internal/ports"
	"PropDashboards/internal/ranking"
)

const defaultWorkers = 4

// GeneratorDeps wires all driven adapters into the PNG pipeline. Capturer,
// Repository, Events, Notifier and Captioner are optional.
type GeneratorDeps struct {
	Source     ports.SnapshotSource
	Repository ports.DashboardRepository
	Capturer   ports.PageCapturer
	Renderer   ports.ImageRenderer
	Events     ports.EventPublisher
	Notifier   ports.Notifier
	Captioner  ports.Captioner
	OutputDir  string
	// PublicURL prefixes the download link stored with each dashboard.
	PublicURL string
	Workers   int
	Scale     int
	Logger    *slog.Logger
	Now       func() time.Time
}

// Request selects what one batch renders.
type Request struct {
	Category string   `json:"category"`
	Firms    []string `json:"firms,omitempty"`
	// Mode overrides the category's competitor mode when set.
	Mode string `json:"mode,omitempty"`
	// Force re-renders dashboards whose fingerprint did not change.
	Force  bool `json:"force,omitempty"`
	Scale  int  `json:"scale,omitempty"`
	Notify bool `json:"notify,omitempty"`
}

// Result summarizes a finished batch.
type Result struct {
	Category   string                      `json:"category"`
	Week       string                      `json:"week"`
	Dashboards []domain.GeneratedDashboard `json:"dashboards"`
	Rendered   int                         `json:"rendered"`
	Skipped    int                         `json:"skipped"`
	Failed     int                         `json:"failed"`
}

// Generator renders one dashboard image per firm of a category.
type Generator struct {
	source     ports.SnapshotSource
	repository ports.DashboardRepository
	capturer   ports.PageCapturer
	renderer   ports.ImageRenderer
	events     ports.EventPublisher
	notifier   ports.Notifier
	captioner  ports.Captioner
	outputDir  string
	publicURL  string
	workers    int
	scale      int
	logger     *slog.Logger
	now        func() time.Time
}

// NewGenerator constructs the orchestration component.
func NewGenerator(deps GeneratorDeps) *Generator {
	g := &Generator{
		source:     deps.Source,
		repository: deps.Repository,
		capturer:   deps.Capturer,
		renderer:   deps.Renderer,
		events:     deps.Events,
		notifier:   deps.Notifier,
		captioner:  deps.Captioner,
		outputDir:  deps.OutputDir,
		publicURL:  deps.PublicURL,
		workers:    deps.Workers,
		scale:      deps.Scale,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if g.workers <= 0 {
		g.workers = defaultWorkers
	}
	if g.logger == nil {
		g.logger = logging.Discard()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// OutputDir is where images are written.
func (g *Generator) OutputDir() string {
	return g.outputDir
}

// Generate renders the requested firms with bounded parallelism. Per-firm
// failures are reported through progress and the batch carries on; only
// setup errors abort the call.
func (g *Generator) Generate(ctx context.Context, req Request, progress func(domain.Progress)) (Result, error) {
	if g.source == nil || g.renderer == nil {
		return Result{}, fmt.Errorf("generator is not configured")
	}
	if progress == nil {
		progress = func(domain.Progress) {}
	}

	snapshot, err := g.source.Load(ctx, req.Category)
	if err != nil {
		return Result{}, fmt.Errorf("load snapshot: %w", err)
	}

	modeValue := req.Mode
	if modeValue == "" {
		modeValue = snapshot.Category.Competitors
	}
	mode, err := ranking.ParseMode(modeValue)
	if err != nil {
		return Result{}, err
	}

	targets, err := selectTargets(snapshot, req.Firms)
	if err != nil {
		return Result{}, err
	}

	scale := req.Scale
	if scale <= 0 {
		scale = g.scale
	}

	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	prints := map[string]string{}
	if g.repository != nil && !req.Force {
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = t.Name
		}
		prints, err = g.repository.Fingerprints(ctx, snapshot.Category.ID, snapshot.Week, names)
		if err != nil {
			return Result{}, fmt.Errorf("load fingerprints: %w", err)
		}
	}

	log := g.logger.With("category", snapshot.Category.ID, "week", snapshot.Week)
	log.Info("generation started", "firms", len(targets), "mode", mode, "workers", g.workers)
	progress(domain.Progress{Type: domain.ProgressStart, Total: len(targets)})

	dashboards := make([]domain.GeneratedDashboard, len(targets))
	var (
		mu        sync.Mutex
		completed int
		grp       errgroup.Group
	)
	grp.SetLimit(g.workers)

	for i, target := range targets {
		grp.Go(func() error {
			d, jobErr := g.generateOne(ctx, snapshot, target, mode, scale, prints[target.Name], req.Force)

			mu.Lock()
			defer mu.Unlock()
			completed++
			dashboards[i] = d
			if jobErr != nil {
				log.Error("dashboard failed", "firm", target.Name, "err", jobErr)
				progress(domain.Progress{
					Type:      domain.ProgressError,
					Total:     len(targets),
					Completed: completed,
					Current:   target.Name,
					Error:     jobErr.Error(),
				})
				return nil
			}
			log.Debug("dashboard done", "firm", target.Name, "status", d.Status)
			progress(domain.Progress{
				Type:      domain.ProgressStep,
				Total:     len(targets),
				Completed: completed,
				Current:   target.Name,
				Dashboard: &d,
			})
			return nil
		})
	}
	_ = grp.Wait()

	result := Result{Category: snapshot.Category.ID, Week: snapshot.Week, Dashboards: dashboards}
	for _, d := range dashboards {
		switch d.Status {
		case domain.StatusRendered:
			result.Rendered++
		case domain.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	log.Info("generation finished", "rendered", result.Rendered, "skipped", result.Skipped, "failed", result.Failed)
	progress(domain.Progress{Type: domain.ProgressComplete, Total: len(targets), Completed: completed})

	if req.Notify {
		if err := g.deliver(ctx, snapshot, result); err != nil {
			log.Warn("delivery failed", "err", err)
		}
	}
	return result, nil
}

// GenerateAll runs a notifying batch for every configured category.
func (g *Generator) GenerateAll(ctx context.Context) ([]Result, error) {
	if g.source == nil {
		return nil, nil
	}
	var (
		results []Result
		errs    []error
	)
	for _, cat := range g.source.Categories() {
		res, err := g.Generate(ctx, Request{Category: cat.ID, Notify: true}, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("category %s: %w", cat.ID, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (g *Generator) generateOne(ctx context.Context, snapshot domain.Snapshot, target domain.FirmRecord, mode ranking.Mode, scale int, stored string, force bool) (domain.GeneratedDashboard, error) {
	d := domain.GeneratedDashboard{
		Firm:     target.Name,
		Category: snapshot.Category.ID,
		Week:     snapshot.Week,
		Filename: domain.ImageFilename(target.Name),
		Status:   domain.StatusFailed,
	}
	d.URL = g.publicURL + "/api/dashboards/" + d.Filename

	if err := ctx.Err(); err != nil {
		return d, err
	}

	opts := dashboard.DefaultOptions()
	opts.Mode = mode
	view, err := dashboard.Build(snapshot, target, opts)
	if err != nil {
		return d, err
	}

	digest, err := fingerprint.Of(struct {
		View  dashboard.View `json:"view"`
		Scale int            `json:"scale"`
	}{view, scale})
	if err != nil {
		return d, err
	}
	d.Fingerprint = digest

	path := filepath.Join(g.outputDir, d.Filename)
	if !force && stored == digest {
		if info, statErr := os.Stat(path); statErr == nil {
			d.Size = info.Size()
			d.Status = domain.StatusSkipped
			d.GeneratedAt = info.ModTime()
			return d, nil
		}
	}

	if g.capturer != nil {
		captured, err := g.capturer.Capture(ctx, snapshot.Category.ID, target.Slug())
		if err != nil {
			return d, err
		}
		// The page always uses the category mode; a per-request override
		// renders from the locally built view instead. A page for another
		// firm is never trusted.
		if captured.Firm == view.Firm && captured.Mode == view.Mode {
			view = captured
		}
	}

	size, err := g.writeImage(view, scale, path)
	if err != nil {
		return d, err
	}
	d.Size = size
	d.Status = domain.StatusRendered
	d.GeneratedAt = g.now().UTC()

	if g.repository != nil {
		if err := g.repository.Save(ctx, d); err != nil {
			return d, fmt.Errorf("save dashboard: %w", err)
		}
	}
	if g.events != nil {
		if err := g.events.PublishGenerated(ctx, d); err != nil {
			g.logger.Warn("publish event failed", "firm", d.Firm, "err", err)
		}
	}
	return d, nil
}

// writeImage renders into a temp file and renames it so readers never see
// a partial PNG.
func (g *Generator) writeImage(view dashboard.View, scale int, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*.png")
	if err != nil {
		return 0, fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := g.renderer.Render(view, scale, tmp); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("render %s: %w", view.Firm, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("stat image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("move image: %w", err)
	}
	return info.Size(), nil
}

func (g *Generator) deliver(ctx context.Context, snapshot domain.Snapshot, result Result) error {
	if g.notifier == nil || result.Rendered == 0 {
		return nil
	}

	caption := defaultCaption(snapshot, result)
	if g.captioner != nil {
		payload, err := buildCaptionJSON(snapshot, result)
		if err != nil {
			return fmt.Errorf("build caption payload: %w", err)
		}
		if text, err := g.captioner.Caption(ctx, payload); err != nil {
			g.logger.Warn("caption failed, using default", "err", err)
		} else if text != "" {
			caption = text
		}
	}
	if err := g.notifier.PublishDigest(ctx, caption); err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}

	var errs []error
	for _, d := range result.Dashboards {
		if d.Status != domain.StatusRendered {
			continue
		}
		rec, _ := snapshot.Find(d.Firm)
		if err := g.publishImage(ctx, snapshot, rec, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Generator) publishImage(ctx context.Context, snapshot domain.Snapshot, rec domain.FirmRecord, d domain.GeneratedDashboard) error {
	f, err := os.Open(filepath.Join(g.outputDir, d.Filename))
	if err != nil {
		return fmt.Errorf("open %s: %w", d.Filename, err)
	}
	defer f.Close()

	caption := fmt.Sprintf("%s | %s | %s", d.Firm, snapshot.Category.Name, snapshot.Week)
	if rec.Valid() {
		caption = fmt.Sprintf("#%d %s", rec.Rank, caption)
	}
	if err := g.notifier.PublishImage(ctx, caption, d.Filename, f); err != nil {
		return fmt.Errorf("publish %s: %w", d.Filename, err)
	}
	return nil
}

// selectTargets returns the requested firms, or every record when none are named.
func selectTargets(snapshot domain.Snapshot, firms []string) ([]domain.FirmRecord, error) {
	if len(firms) == 0 {
		return append([]domain.FirmRecord(nil), snapshot.Records...), nil
	}
	targets := make([]domain.FirmRecord, 0, len(firms))
	for _, name := range firms {
		rec, ok := snapshot.Find(name)
		if !ok {
			return nil, fmt.Errorf("firm %q: %w", name, ports.ErrNotFound)
		}
		targets = append(targets, rec)
	}
	return targets, nil
}

func defaultCaption(snapshot domain.Snapshot, result Result) string {
	return fmt.Sprintf("%s ranking for %s: %d dashboards updated.", snapshot.Category.Name, snapshot.Week, result.Rendered)
}

func buildCaptionJSON(snapshot domain.Snapshot, result Result) ([]byte, error) {
	type item struct {
		Firm     string `json:"firm"`
		Rank     int    `json:"rank"`
		Movement int    `json:"movement"`
	}

	payload := struct {
		Category string `json:"category"`
		Week     string `json:"week"`
		Visitors int64  `json:"visitors"`
		Firms    []item `json:"firms"`
	}{
		Category: snapshot.Category.Name,
		Week:     snapshot.Week,
		Visitors: snapshot.Category.Visitors,
	}
	for _, d := range result.Dashboards {
		if d.Status != domain.StatusRendered {
			continue
		}
		rec, _ := snapshot.Find(d.Firm)
		payload.Firms = append(payload.Firms, item{Firm: d.Firm, Rank: rec.Rank, Movement: rec.Movement()})
	}
	return json.Marshal(payload)
}
