package ranking

import "PropDashboards/internal/domain"

// Placeholder replaces competitor names when identities are hidden.
const Placeholder = "???"

// Anonymize returns a copy of window where every record other than the
// target carries Placeholder as its name. Metrics, order and length are
// preserved.
func Anonymize(window []domain.FirmRecord, target domain.FirmRecord) []domain.FirmRecord {
	out := make([]domain.FirmRecord, len(window))
	for i, rec := range window {
		if rec.Name != target.Name {
			rec.Name = Placeholder
		}
		out[i] = rec
	}
	return out
}
