package dashboard

import (
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/ranking"
)

func snapshotOf(n int) domain.Snapshot {
	records := make([]domain.FirmRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, domain.FirmRecord{
			Name:         fmt.Sprintf("Firm %d", i),
			Rank:         i,
			PreviousRank: i + 2,
			Metrics: domain.Metrics{
				RevenuePrevious:   decimal.NewFromInt(200000),
				RevenueCurrent:    decimal.NewFromInt(182660),
				FavoritesPrevious: 900,
				FavoritesCurrent:  int64(1000 - i),
				FavoritesAdded:    40,
				FavoritesChange:   1.47,
				TrafficPrevious:   165650,
				TrafficCurrent:    151280,
				CFDShare:          float64(i) * 1.5,
			},
		})
	}
	return domain.Snapshot{
		Category: domain.Category{ID: "prop-trading", Name: "Prop Trading", Visitors: 105844},
		Week:     "Aug 1 - Aug 7",
		Records:  records,
	}
}

func TestBuildView(t *testing.T) {
	t.Parallel()

	snap := snapshotOf(10)
	target := snap.Records[5]

	view, err := Build(snap, target, DefaultOptions())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if view.Firm != "Firm 6" || view.Week != "Aug 1 - Aug 7" || view.Category.ID != "prop-trading" {
		t.Fatalf("unexpected header fields: %+v", view)
	}
	if len(view.Leaderboard) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(view.Leaderboard))
	}
	if view.Leaderboard[0].Rank != 3 || view.Leaderboard[4].Rank != 7 {
		t.Fatalf("unexpected window: %+v", view.Leaderboard)
	}
	row, ok := view.Target()
	if !ok || row.Name != "Firm 6" || row.Favorites != 994 || row.Traffic != 9 {
		t.Fatalf("unexpected target row: %+v", row)
	}
	if view.Leaderboard[0].BarWidth != 80 || row.BarWidth != 75 {
		t.Fatalf("unexpected bar widths: %+v", view.Leaderboard)
	}

	if view.Revenue.ChangePercent != -8.67 {
		t.Fatalf("unexpected revenue change: %v", view.Revenue.ChangePercent)
	}
	if math.Abs(view.Traffic.ChangePercent-(-8.6749)) > 0.001 {
		t.Fatalf("unexpected traffic change: %v", view.Traffic.ChangePercent)
	}
	if view.Favorites.Movement != 2 || view.Favorites.Rank != 6 || view.Favorites.PreviousRank != 8 {
		t.Fatalf("unexpected favorites card: %+v", view.Favorites)
	}
}

func TestBuildViewAnonymized(t *testing.T) {
	t.Parallel()

	snap := snapshotOf(10)
	opts := DefaultOptions()
	opts.Mode = ranking.ModeAnonymize

	view, err := Build(snap, snap.Records[0], opts)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	for _, row := range view.Leaderboard {
		if row.Target {
			if row.Name != "Firm 1" {
				t.Fatalf("target renamed: %+v", row)
			}
			continue
		}
		if row.Name != ranking.Placeholder || row.LogoID != "" {
			t.Fatalf("competitor not anonymized: %+v", row)
		}
	}
}

func TestBuildViewRejectsNegativeWindow(t *testing.T) {
	t.Parallel()

	snap := snapshotOf(3)
	_, err := Build(snap, snap.Records[0], Options{Above: -1, Below: 1})
	if err == nil {
		t.Fatalf("expected error for negative window")
	}
}

func TestBuildViewZeroPrevious(t *testing.T) {
	t.Parallel()

	snap := snapshotOf(2)
	snap.Records[1].Metrics.RevenuePrevious = decimal.Zero
	snap.Records[1].Metrics.TrafficPrevious = 0
	snap.Records[1].Metrics.CFDShare = 140

	view, err := Build(snap, snap.Records[1], DefaultOptions())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if view.Revenue.ChangePercent != 0 || view.Traffic.ChangePercent != 0 {
		t.Fatalf("expected zero change for zero baseline: %+v %+v", view.Revenue, view.Traffic)
	}
	if view.Traffic.Share != 100 {
		t.Fatalf("expected share clamped to 100, got %v", view.Traffic.Share)
	}
}

func TestHeights(t *testing.T) {
	t.Parallel()

	prev, cur := Heights(165650, 151280)
	if prev != 100 || math.Abs(cur-91.325) > 0.01 {
		t.Fatalf("unexpected heights: %v %v", prev, cur)
	}
	if a, b := Heights(0, 0); a != 0 || b != 0 {
		t.Fatalf("expected zero heights, got %v %v", a, b)
	}
}
