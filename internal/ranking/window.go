package ranking

import (
	"errors"
	"fmt"
	"sort"

	"PropDashboards/internal/domain"
)

const (
	// DefaultAbove and DefaultBelow give the 3-above/1-below middle window.
	DefaultAbove = 3
	DefaultBelow = 1
)

// ErrInvalidWindow is returned for negative window sizes.
var ErrInvalidWindow = errors.New("invalid window size")

// tier decides how many neighbours to show on each side of the target.
// n is the length of the ranked list and index the target position in it.
type tier struct {
	match func(rank, index, n int) bool
	span  func(index, n, above, below int) (int, int)
}

// tiers are evaluated top-down; the first match wins.
var tiers = []tier{
	{
		match: func(rank, _, _ int) bool { return rank == 1 },
		span:  func(i, n, _, _ int) (int, int) { return 0, min(4, n-i-1) },
	},
	{
		match: func(rank, _, _ int) bool { return rank == 2 },
		span:  func(i, n, _, _ int) (int, int) { return 1, min(3, n-i-1) },
	},
	{
		match: func(rank, _, _ int) bool { return rank == 3 },
		span:  func(i, n, _, _ int) (int, int) { return 2, min(2, n-i-1) },
	},
	{
		match: func(_, i, n int) bool { return i >= n-2 },
		span:  func(i, n, _, _ int) (int, int) { return min(4, i), min(1, n-i-1) },
	},
	{
		match: func(_, _, _ int) bool { return true },
		span:  func(i, n, above, below int) (int, int) { return min(above, i), min(below, n-i-1) },
	},
}

// SelectDefault runs Select with the 3-above/1-below window.
func SelectDefault(records []domain.FirmRecord, target domain.FirmRecord) []domain.FirmRecord {
	window, _ := Select(records, target, DefaultAbove, DefaultBelow)
	return window
}

// Select picks the competitors shown around target on its dashboard.
//
// Unranked records (rank <= 0) are dropped and the rest ordered by rank.
// The target is located by name; when several records share the name the
// first one in rank order is used. A target missing from records is
// either prepended to the leaders (unranked target) or slotted into the
// ranking by its rank. The result never holds more than above+below+1
// records, is ordered by rank (except the leading unranked target) and
// always contains the target. records is not modified.
func Select(records []domain.FirmRecord, target domain.FirmRecord, above, below int) ([]domain.FirmRecord, error) {
	if above < 0 || below < 0 {
		return nil, fmt.Errorf("%w: above=%d below=%d", ErrInvalidWindow, above, below)
	}
	// A window never spans more than the records plus the target, so larger
	// sizes select the same records and must not overflow capacity.
	above = min(above, len(records)+1)
	below = min(below, len(records)+1)
	capacity := above + below + 1

	ranked := validSorted(records)
	index := indexOf(ranked, target.Name)

	if index < 0 {
		if !target.Valid() {
			out := make([]domain.FirmRecord, 0, min(capacity, len(ranked)+1))
			out = append(out, target)
			return append(out, ranked[:min(len(ranked), capacity-1)]...), nil
		}
		ranked, index = insertByRank(ranked, target)
	}

	n := len(ranked)
	effAbove, effBelow := spanFor(target.Rank, index, n, above, below)
	start := max(0, index-effAbove)
	end := min(n-1, index+effBelow)

	window := clampAround(ranked[start:end+1], index-start, capacity)
	out := make([]domain.FirmRecord, len(window))
	copy(out, window)
	return out, nil
}

func spanFor(rank, index, n, above, below int) (int, int) {
	for _, t := range tiers {
		if t.match(rank, index, n) {
			return t.span(index, n, above, below)
		}
	}
	return 0, 0
}

func validSorted(records []domain.FirmRecord) []domain.FirmRecord {
	ranked := make([]domain.FirmRecord, 0, len(records))
	for _, rec := range records {
		if rec.Valid() {
			ranked = append(ranked, rec)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Rank < ranked[j].Rank
	})
	return ranked
}

func indexOf(ranked []domain.FirmRecord, name string) int {
	for i, rec := range ranked {
		if rec.Name == name {
			return i
		}
	}
	return -1
}

// insertByRank places target ahead of any record with an equal rank.
func insertByRank(ranked []domain.FirmRecord, target domain.FirmRecord) ([]domain.FirmRecord, int) {
	at := sort.Search(len(ranked), func(i int) bool {
		return ranked[i].Rank >= target.Rank
	})
	merged := make([]domain.FirmRecord, 0, len(ranked)+1)
	merged = append(merged, ranked[:at]...)
	merged = append(merged, target)
	merged = append(merged, ranked[at:]...)
	return merged, at
}

// clampAround trims window to capacity, dropping from the tail first and
// then from the head, without ever dropping the record at pos.
func clampAround(window []domain.FirmRecord, pos, capacity int) []domain.FirmRecord {
	if len(window) <= capacity {
		return window
	}
	end := max(pos+1, capacity)
	start := end - capacity
	return window[start:end]
}
