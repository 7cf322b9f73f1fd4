package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/ports"
)

const (
	headerHeight = 72
	gutter       = 12
	textScale    = 2
)

var (
	backgroundColor = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	textColor       = color.RGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}
	mutedTextColor  = color.RGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}

	targetBar   = drawing.ColorFromHex("ec4899")
	peerBar     = drawing.ColorFromHex("6366f1")
	hiddenBar   = drawing.ColorFromHex("475569")
	previousBar = drawing.ColorFromHex("64748b")
	currentBar  = drawing.ColorFromHex("22d3ee")
)

// CardRenderer rasterizes a dashboard view into a single PNG: a header,
// the leaderboard chart on the left and the three metric cards on the right.
type CardRenderer struct {
	width  int
	height int
	scale  int
	print  *message.Printer
}

var _ ports.ImageRenderer = (*CardRenderer)(nil)

// NewCardRenderer sets the logical canvas size. The output is width*scale
// by height*scale pixels.
func NewCardRenderer(width, height, scale int) *CardRenderer {
	if scale <= 0 {
		scale = 1
	}
	return &CardRenderer{
		width:  width,
		height: height,
		scale:  scale,
		print:  message.NewPrinter(language.English),
	}
}

// Size is the pixel size of images rendered at the given scale.
func (r *CardRenderer) Size(scale int) (int, int) {
	if scale <= 0 {
		scale = r.scale
	}
	return r.width * scale, r.height * scale
}

// Render implements ports.ImageRenderer.
func (r *CardRenderer) Render(view dashboard.View, scale int, w io.Writer) error {
	if scale <= 0 {
		scale = r.scale
	}
	width, height := r.Size(scale)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid canvas %dx%d", width, height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	r.drawHeader(canvas, view, scale)

	top := headerHeight * scale
	pad := gutter * scale
	bodyHeight := height - top - pad
	leftWidth := width*45/100 - pad
	left := image.Rect(pad, top, pad+leftWidth, top+bodyHeight)

	if len(view.Leaderboard) > 0 {
		img, err := renderChart(leaderboardChart(view, left.Dx(), left.Dy()))
		if err != nil {
			return fmt.Errorf("render leaderboard: %w", err)
		}
		draw.Draw(canvas, left, img, image.Point{}, draw.Src)
	} else {
		drawText(canvas, left.Min.X, left.Min.Y+pad, "No ranked competitors", mutedTextColor, scale)
	}

	cards := []struct {
		title    string
		previous float64
		current  float64
	}{
		{r.revenueTitle(view.Revenue), view.Revenue.Previous.InexactFloat64(), view.Revenue.Current.InexactFloat64()},
		{r.trafficTitle(view.Traffic), float64(view.Traffic.Previous), float64(view.Traffic.Current)},
		{r.favoritesTitle(view.Favorites), float64(view.Favorites.Previous), float64(view.Favorites.Current)},
	}
	rightX := left.Max.X + pad
	rightWidth := width - rightX - pad
	cardHeight := (bodyHeight - pad*(len(cards)-1)) / len(cards)
	for i, card := range cards {
		y := top + i*(cardHeight+pad)
		rect := image.Rect(rightX, y, rightX+rightWidth, y+cardHeight)
		img, err := renderChart(comparisonChart(card.title, card.previous, card.current, rect.Dx(), rect.Dy()))
		if err != nil {
			return fmt.Errorf("render card %d: %w", i, err)
		}
		draw.Draw(canvas, rect, img, image.Point{}, draw.Src)
	}

	if err := png.Encode(w, canvas); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func (r *CardRenderer) drawHeader(canvas *image.RGBA, view dashboard.View, scale int) {
	x := gutter * scale
	lineHeight := 13 * textScale * scale

	title := view.Firm
	if view.Favorites.Rank > 0 {
		title = r.print.Sprintf("#%d %s", view.Favorites.Rank, view.Firm)
	}
	drawText(canvas, x, gutter*scale, title, textColor, scale)

	sub := r.print.Sprintf("%s | %s | %d visitors", view.Category.Name, view.Week, view.Category.Visitors)
	if view.Favorites.Movement != 0 {
		sub = r.print.Sprintf("%s | %+d places", sub, view.Favorites.Movement)
	}
	drawText(canvas, x, gutter*scale+lineHeight+4*scale, sub, mutedTextColor, scale)
}

func (r *CardRenderer) revenueTitle(card dashboard.RevenueCard) string {
	return r.print.Sprintf("Revenue $%d (%+.2f%%)", card.Current.Round(0).IntPart(), card.ChangePercent)
}

func (r *CardRenderer) trafficTitle(card dashboard.TrafficCard) string {
	return r.print.Sprintf("Traffic %d (%+.2f%%) share %.1f%%", card.Current, card.ChangePercent, card.Share)
}

func (r *CardRenderer) favoritesTitle(card dashboard.FavoritesCard) string {
	return r.print.Sprintf("Favorites %d (+%d, %+.2f%%)", card.Current, card.Added, card.ChangePercent)
}

func leaderboardChart(view dashboard.View, width, height int) chart.BarChart {
	bars := make([]chart.Value, 0, len(view.Leaderboard))
	top := 1.0
	for _, row := range view.Leaderboard {
		value := float64(row.Favorites)
		fill := peerBar
		switch {
		case row.Target:
			fill = targetBar
		case row.Hidden:
			fill = hiddenBar
		}
		top = max(top, value)
		bars = append(bars, chart.Value{
			Value: value,
			Label: fmt.Sprintf("#%d %s", row.Rank, row.Name),
			Style: chart.Style{FillColor: fill, StrokeColor: fill, StrokeWidth: 1},
		})
	}
	return chart.BarChart{
		Title:      "Popularity ranking",
		Width:      width,
		Height:     height,
		BarWidth:   barWidth(width, len(bars)),
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1}},
		Bars:       bars,
	}
}

func comparisonChart(title string, previous, current float64, width, height int) chart.BarChart {
	top := max(1, previous, current)
	return chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth(width, 2),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 8}},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1}},
		Bars: []chart.Value{
			{Value: max(0, previous), Label: "Previous", Style: chart.Style{FillColor: previousBar, StrokeColor: previousBar, StrokeWidth: 1}},
			{Value: max(0, current), Label: "Current", Style: chart.Style{FillColor: currentBar, StrokeColor: currentBar, StrokeWidth: 1}},
		},
	}
}

func barWidth(width, bars int) int {
	if bars <= 0 {
		return 0
	}
	return max(8, width/(bars*2+2))
}

func renderChart(c chart.BarChart) (image.Image, error) {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return img, nil
}

// drawText writes s with the 7x13 bitmap face and upsamples it so the
// header stays legible at high output scales.
func drawText(dst *image.RGBA, x, y int, s string, col color.Color, scale int) {
	if s == "" {
		return
	}
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, s).Ceil()
	small := image.NewRGBA(image.Rect(0, 0, textWidth, face.Height))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Ascent)},
	}
	d.DrawString(s)

	factor := textScale * scale
	target := image.Rect(x, y, x+textWidth*factor, y+face.Height*factor).Intersect(dst.Bounds())
	if target.Empty() {
		return
	}
	xdraw.NearestNeighbor.Scale(dst, target, small, image.Rect(0, 0, target.Dx()/factor, target.Dy()/factor), xdraw.Over, nil)
}
