package ranking

import (
	"fmt"
	"strings"

	"PropDashboards/internal/domain"
)

// Mode controls how competitors other than the target are presented.
type Mode string

const (
	// ModeNames shows every competitor with its real name and metrics.
	ModeNames Mode = "names"
	// ModeAnonymize hides competitor names behind Placeholder.
	ModeAnonymize Mode = "anonymize"
	// ModeBlur keeps names but asks the presentation layer to hide the
	// competitors' metric values.
	ModeBlur Mode = "blur"
)

// ParseMode accepts the configuration spelling of a Mode; empty means names.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeNames:
		return ModeNames, nil
	case ModeAnonymize:
		return ModeAnonymize, nil
	case ModeBlur:
		return ModeBlur, nil
	default:
		return "", fmt.Errorf("unknown competitor mode %q", value)
	}
}

// Entry is a window record prepared for display.
type Entry struct {
	Record domain.FirmRecord `json:"record"`
	Target bool              `json:"target"`
	Hidden bool              `json:"hidden"`
}

// Present applies mode to a selected window.
func Present(window []domain.FirmRecord, target domain.FirmRecord, mode Mode) []Entry {
	if mode == ModeAnonymize {
		window = Anonymize(window, target)
	}
	entries := make([]Entry, len(window))
	for i, rec := range window {
		isTarget := rec.Name == target.Name
		entries[i] = Entry{
			Record: rec,
			Target: isTarget,
			Hidden: mode == ModeBlur && !isTarget,
		}
	}
	return entries
}
