package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
)

// ErrNotFound is returned by adapters when a requested item does not exist.
var ErrNotFound = errors.New("not found")

// SnapshotSource loads the ranking record store for one category.
type SnapshotSource interface {
	Load(ctx context.Context, category string) (domain.Snapshot, error)
	Categories() []domain.Category
}

// DashboardRepository persists generated dashboards for history and re-render checks.
type DashboardRepository interface {
	Fingerprints(ctx context.Context, category, week string, firms []string) (map[string]string, error)
	Save(ctx context.Context, dashboard domain.GeneratedDashboard) error
	List(ctx context.Context, category, week string) ([]domain.GeneratedDashboard, error)
}

// PageCapturer reads a server-rendered dashboard page back into a view.
type PageCapturer interface {
	Capture(ctx context.Context, category, slug string) (dashboard.View, error)
}

// ImageRenderer rasterizes a dashboard view. scale <= 0 uses the renderer default.
type ImageRenderer interface {
	Render(view dashboard.View, scale int, w io.Writer) error
}

// Notifier delivers batch digests and rendered images to a chat channel (Telegram, etc.).
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
	PublishImage(ctx context.Context, caption, filename string, image io.Reader) error
}

// EventPublisher announces generated dashboards to downstream consumers.
type EventPublisher interface {
	PublishGenerated(ctx context.Context, dashboard domain.GeneratedDashboard) error
}

// Captioner writes the message attached to a delivered batch.
type Captioner interface {
	Caption(ctx context.Context, payload []byte) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
