package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyName marks a record whose firm name is blank after trimming.
	ErrEmptyName = errors.New("firm name is empty")
	// ErrDuplicateFirm marks two records sharing a name inside one snapshot.
	ErrDuplicateFirm = errors.New("duplicate firm in snapshot")
	// ErrUnknownCategory is returned when a category has no configured snapshot.
	ErrUnknownCategory = errors.New("unknown category")
)

// Metrics is the numeric payload carried by a FirmRecord. The ranking code
// passes it through untouched.
type Metrics struct {
	RevenuePrevious   decimal.Decimal `json:"revenuePrevious"`
	RevenueCurrent    decimal.Decimal `json:"revenueCurrent"`
	RevenueChange     float64         `json:"revenueChange"`
	FavoritesPrevious int64           `json:"favoritesPrevious"`
	FavoritesCurrent  int64           `json:"favoritesCurrent"`
	FavoritesAdded    int64           `json:"favoritesAdded"`
	FavoritesChange   float64         `json:"favoritesChange"`
	TrafficPrevious   int64           `json:"trafficPrevious"`
	TrafficCurrent    int64           `json:"trafficCurrent"`
	TrafficIncrease   float64         `json:"trafficIncrease"`
	CFDShare          float64         `json:"cfdShare"`
}

// FirmRecord is one row of a weekly snapshot.
type FirmRecord struct {
	Name         string  `json:"name"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previousRank"`
	Metrics      Metrics `json:"metrics"`
}

// Valid reports whether the record holds a real ranking position.
func (f FirmRecord) Valid() bool {
	return f.Rank > 0
}

// Movement is the number of places gained since the previous period.
// New firms (no previous rank) and unranked firms report zero.
func (f FirmRecord) Movement() int {
	if f.PreviousRank <= 0 || f.Rank <= 0 {
		return 0
	}
	return f.PreviousRank - f.Rank
}

// Slug is the URL form of the firm name used by dashboard routes.
func (f FirmRecord) Slug() string {
	return Slugify(f.Name)
}

// Slugify lowercases a firm name and joins its words with dashes.
func Slugify(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

// ImageFilename maps a firm name to the file the PNG pipeline writes.
func ImageFilename(name string) string {
	joined := strings.Join(strings.Fields(name), "_")
	var b strings.Builder
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "dashboard.png"
	}
	return b.String() + ".png"
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}

func duplicateError(name string) error {
	return fmt.Errorf("%w: %q", ErrDuplicateFirm, name)
}
