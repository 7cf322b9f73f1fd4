package web

import (
	"html/template"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
)

var printer = message.NewPrinter(language.English)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":        formatMoney,
		"num":          formatCount,
		"pct":          formatPercent,
		"float":        formatFloat,
		"heights":      barHeights,
		"countHeights": countHeights,
		"imageFile":    domain.ImageFilename,
		"movement":     formatMovement,
	}
}

func formatMoney(d decimal.Decimal) string {
	return printer.Sprintf("$%d", d.Round(0).IntPart())
}

func formatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

func formatPercent(v float64) string {
	return printer.Sprintf("%+.2f%%", v)
}

// formatFloat is the lossless form used in data attributes.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func barHeights(previous, current float64) []int {
	p, c := dashboard.Heights(previous, current)
	return []int{int(math.Round(p)), int(math.Round(c))}
}

func countHeights(previous, current int64) []int {
	return barHeights(float64(previous), float64(current))
}

func formatMovement(n int) string {
	switch {
	case n > 0:
		return "▲ " + strconv.Itoa(n)
	case n < 0:
		return "▼ " + strconv.Itoa(-n)
	default:
		return "="
	}
}
