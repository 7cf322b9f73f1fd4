package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/ingest"
)

// Column positions of the weekly export.
const (
	colName = iota
	colPreviousPosition
	colCurrentPosition
	colRevenuePrevious
	colRevenueCurrent
	colRevenueChange
	colFavoritesPrevious
	colFavoritesCurrent
	colFavoritesAdded
	colFavoritesChange
	colTrafficPrevious
	colTrafficCurrent
	colTrafficIncrease
	colCFDShare
	columnCount
)

// minColumns is the shortest row that still carries a name and both positions.
const minColumns = colCurrentPosition + 1

// WeeklyCSV parses the 14-column weekly ranking export.
type WeeklyCSV struct{}

var _ ingest.Parser = WeeklyCSV{}

// Name implements ingest.Parser.
func (WeeklyCSV) Name() string {
	return ingest.DefaultFormat
}

// Parse skips the header row and rows with a blank name. Missing trailing
// metric columns read as zero.
func (WeeklyCSV) Parse(ctx context.Context, r io.Reader, req ingest.Request) ([]domain.FirmRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		records []domain.FirmRecord
		header  = true
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", req.Source, err)
		}
		if header {
			header = false
			continue
		}
		if len(row) == 0 || strings.TrimSpace(row[colName]) == "" {
			continue
		}
		if len(row) < minColumns {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%s line %d: %d columns: %w", req.Source, line, len(row), ingest.ErrMalformedRow)
		}
		records = append(records, recordFromRow(row))
	}
	return records, nil
}

func recordFromRow(row []string) domain.FirmRecord {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return domain.FirmRecord{
		Name:         strings.TrimSpace(cell(colName)),
		PreviousRank: int(parseNumber(cell(colPreviousPosition))),
		Rank:         int(parseNumber(cell(colCurrentPosition))),
		Metrics: domain.Metrics{
			RevenuePrevious:   parseMoney(cell(colRevenuePrevious)),
			RevenueCurrent:    parseMoney(cell(colRevenueCurrent)),
			RevenueChange:     parsePercentage(cell(colRevenueChange)),
			FavoritesPrevious: parseNumber(cell(colFavoritesPrevious)),
			FavoritesCurrent:  parseNumber(cell(colFavoritesCurrent)),
			FavoritesAdded:    parseNumber(cell(colFavoritesAdded)),
			FavoritesChange:   parsePercentage(cell(colFavoritesChange)),
			TrafficPrevious:   parseNumber(cell(colTrafficPrevious)),
			TrafficCurrent:    parseNumber(cell(colTrafficCurrent)),
			TrafficIncrease:   parsePercentage(cell(colTrafficIncrease)),
			CFDShare:          parsePercentage(cell(colCFDShare)),
		},
	}
}

// parseMoney reads "$1,234.50" style cells. Placeholders and garbage are zero.
func parseMoney(value string) decimal.Decimal {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(value))
	if blankCell(cleaned) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parsePercentage(value string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, "%", ""))
	if blankCell(cleaned) {
		return 0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseNumber truncates fractional counts the way integer parsing of the
// export always has. Values that are not finite or do not fit in int64
// read as zero, like any other unparsable cell.
func parseNumber(value string) int64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if blankCell(cleaned) {
		return 0
	}
	if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func blankCell(v string) bool {
	switch strings.ToUpper(v) {
	case "", "-", "N/A":
		return true
	}
	return false
}
