package domain

import "time"

// GenerationStatus enumerates the outcome of one per-firm render job.
type GenerationStatus string

const (
	StatusRendered GenerationStatus = "rendered"
	StatusSkipped  GenerationStatus = "skipped"
	StatusFailed   GenerationStatus = "failed"
)

// GeneratedDashboard describes one PNG written by the pipeline.
type GeneratedDashboard struct {
	Firm        string           `json:"firmName"`
	Category    string           `json:"category"`
	Week        string           `json:"week"`
	Filename    string           `json:"filename"`
	URL         string           `json:"url"`
	Fingerprint string           `json:"fingerprint"`
	Size        int64            `json:"size"`
	Status      GenerationStatus `json:"status"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// ProgressKind is the type field of a progress event.
type ProgressKind string

const (
	ProgressStart    ProgressKind = "start"
	ProgressStep     ProgressKind = "progress"
	ProgressError    ProgressKind = "error"
	ProgressComplete ProgressKind = "complete"
)

// Progress is emitted while a batch is generated.
type Progress struct {
	Type      ProgressKind        `json:"type"`
	Total     int                 `json:"total"`
	Completed int                 `json:"completed"`
	Current   string              `json:"current,omitempty"`
	Dashboard *GeneratedDashboard `json:"dashboard,omitempty"`
	Error     string              `json:"error,omitempty"`
}
