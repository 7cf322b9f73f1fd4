package dashboard

import (
	"fmt"

	"github.com/shopspring/decimal"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/ranking"
)

// View is everything a report card shows for one firm. The web page and
// the PNG renderer both draw from it.
type View struct {
	Category    domain.Category `json:"category"`
	Week        string          `json:"week"`
	Firm        string          `json:"firm"`
	LogoID      string          `json:"logoId"`
	Mode        ranking.Mode    `json:"mode"`
	Leaderboard []Row           `json:"leaderboard"`
	Revenue     RevenueCard     `json:"revenue"`
	Traffic     TrafficCard     `json:"traffic"`
	Favorites   FavoritesCard   `json:"favorites"`
}

// Row is one leaderboard line.
type Row struct {
	Rank      int             `json:"rank"`
	Name      string          `json:"name"`
	LogoID    string          `json:"logoId"`
	Favorites int64           `json:"favorites"`
	Revenue   decimal.Decimal `json:"revenue"`
	Traffic   float64         `json:"traffic"`
	Target    bool            `json:"target"`
	Hidden    bool            `json:"hidden"`
	BarWidth  int             `json:"barWidth"`
}

// RevenueCard compares this week's revenue to the previous one.
type RevenueCard struct {
	Previous      decimal.Decimal `json:"previous"`
	Current       decimal.Decimal `json:"current"`
	ChangePercent float64         `json:"changePercent"`
}

// TrafficCard compares page traffic and shows the category share.
type TrafficCard struct {
	Previous      int64   `json:"previous"`
	Current       int64   `json:"current"`
	ChangePercent float64 `json:"changePercent"`
	Share         float64 `json:"share"`
}

// FavoritesCard shows favorites growth and rank movement.
type FavoritesCard struct {
	Previous      int64   `json:"previous"`
	Current       int64   `json:"current"`
	Added         int64   `json:"added"`
	ChangePercent float64 `json:"changePercent"`
	Rank          int     `json:"rank"`
	PreviousRank  int     `json:"previousRank"`
	Movement      int     `json:"movement"`
}

// Options tunes how the leaderboard window is chosen and presented.
type Options struct {
	Above int
	Below int
	Mode  ranking.Mode
}

// DefaultOptions is the 3-above/1-below window with real names.
func DefaultOptions() Options {
	return Options{Above: ranking.DefaultAbove, Below: ranking.DefaultBelow, Mode: ranking.ModeNames}
}

// Build assembles the view of target within snapshot.
func Build(snapshot domain.Snapshot, target domain.FirmRecord, opts Options) (View, error) {
	window, err := ranking.Select(snapshot.Records, target, opts.Above, opts.Below)
	if err != nil {
		return View{}, fmt.Errorf("select window for %s: %w", target.Name, err)
	}

	mode := opts.Mode
	if mode == "" {
		mode = ranking.ModeNames
	}

	entries := ranking.Present(window, target, mode)
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rec := e.Record
		logo := LogoID(rec.Name)
		if rec.Name == ranking.Placeholder {
			logo = ""
		}
		rows = append(rows, Row{
			Rank:      rec.Rank,
			Name:      rec.Name,
			LogoID:    logo,
			Favorites: rec.Metrics.FavoritesCurrent,
			Revenue:   rec.Metrics.RevenueCurrent,
			Traffic:   rec.Metrics.CFDShare,
			Target:    e.Target,
			Hidden:    e.Hidden,
			BarWidth:  barWidth(rec.Rank),
		})
	}

	m := target.Metrics
	return View{
		Category:    snapshot.Category,
		Week:        snapshot.Week,
		Firm:        target.Name,
		LogoID:      LogoID(target.Name),
		Mode:        mode,
		Leaderboard: rows,
		Revenue: RevenueCard{
			Previous:      m.RevenuePrevious,
			Current:       m.RevenueCurrent,
			ChangePercent: decimalChange(m.RevenuePrevious, m.RevenueCurrent),
		},
		Traffic: TrafficCard{
			Previous:      m.TrafficPrevious,
			Current:       m.TrafficCurrent,
			ChangePercent: percentChange(m.TrafficPrevious, m.TrafficCurrent),
			Share:         clampPercent(m.CFDShare),
		},
		Favorites: FavoritesCard{
			Previous:      m.FavoritesPrevious,
			Current:       m.FavoritesCurrent,
			Added:         m.FavoritesAdded,
			ChangePercent: m.FavoritesChange,
			Rank:          target.Rank,
			PreviousRank:  target.PreviousRank,
			Movement:      target.Movement(),
		},
	}, nil
}

// Target returns the leaderboard row of the firm the view was built for.
func (v View) Target() (Row, bool) {
	for _, row := range v.Leaderboard {
		if row.Target {
			return row, true
		}
	}
	return Row{}, false
}

// Heights returns the bar heights of previous and current values as a
// percentage of the larger one.
func Heights(previous, current float64) (float64, float64) {
	top := max(previous, current)
	if top <= 0 {
		return 0, 0
	}
	return previous / top * 100, current / top * 100
}

func barWidth(rank int) int {
	switch rank {
	case 1:
		return 100
	case 2:
		return 90
	case 3:
		return 80
	default:
		return 75
	}
}

func percentChange(previous, current int64) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

func decimalChange(previous, current decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func clampPercent(v float64) float64 {
	return min(100, max(0, v))
}
