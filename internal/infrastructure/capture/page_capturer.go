package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/ports"
	"PropDashboards/internal/ranking"
)

const (
	defaultAttempts = 10
	defaultInterval = 200 * time.Millisecond
)

// errNotReady means the page answered but has not finished rendering.
var errNotReady = errors.New("dashboard page not ready")

// PageCapturer fetches server-rendered dashboard pages and reads the card
// values back from their data attributes.
type PageCapturer struct {
	client   *http.Client
	baseURL  string
	attempts int
	interval time.Duration
}

var _ ports.PageCapturer = (*PageCapturer)(nil)

// Options tunes readiness polling. Zero values use the defaults.
type Options struct {
	Attempts int
	Interval time.Duration
}

// NewPageCapturer wires an HTTP client against the dashboard server base URL.
func NewPageCapturer(client *http.Client, baseURL string, opts Options) *PageCapturer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &PageCapturer{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		attempts: opts.Attempts,
		interval: opts.Interval,
	}
}

// Capture polls the firm page until it reports data-ready and parses it.
func (p *PageCapturer) Capture(ctx context.Context, category, slug string) (dashboard.View, error) {
	pageURL, err := p.pageURL(category, slug)
	if err != nil {
		return dashboard.View{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		doc, err := p.fetchDocument(ctx, pageURL)
		if err == nil {
			view, perr := parseView(doc)
			if perr == nil {
				return view, nil
			}
			err = perr
		}
		if !errors.Is(err, errNotReady) {
			return dashboard.View{}, fmt.Errorf("capture %s: %w", slug, err)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return dashboard.View{}, ctx.Err()
		case <-time.After(p.interval):
		}
	}
	return dashboard.View{}, fmt.Errorf("capture %s after %d attempts: %w", slug, p.attempts, lastErr)
}

func (p *PageCapturer) pageURL(category, slug string) (string, error) {
	parsed, err := url.Parse(p.baseURL + "/dashboard/" + url.PathEscape(slug))
	if err != nil {
		return "", fmt.Errorf("invalid dashboard url: %w", err)
	}
	query := parsed.Query()
	query.Set("category", category)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (p *PageCapturer) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "PropDashboards/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("dashboard page: %w", ports.ErrNotFound)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, errNotReady
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("dashboard page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func parseView(doc *goquery.Document) (dashboard.View, error) {
	root := doc.Find("#dashboard").First()
	if root.Length() == 0 {
		return dashboard.View{}, fmt.Errorf("dashboard root element missing")
	}
	if attr(root, "data-ready") != "true" {
		return dashboard.View{}, errNotReady
	}

	view := dashboard.View{
		Category: domain.Category{
			ID:       attr(root, "data-category"),
			Name:     attr(root, "data-category-name"),
			Visitors: attrInt64(root, "data-visitors"),
		},
		Week:   attr(root, "data-week"),
		Firm:   attr(root, "data-firm"),
		LogoID: attr(root, "data-logo"),
		Mode:   ranking.Mode(attr(root, "data-mode")),
	}

	revenue := doc.Find(`[data-card="revenue"]`).First()
	view.Revenue = dashboard.RevenueCard{
		Previous:      attrDecimal(revenue, "data-previous"),
		Current:       attrDecimal(revenue, "data-current"),
		ChangePercent: attrFloat(revenue, "data-change"),
	}

	traffic := doc.Find(`[data-card="traffic"]`).First()
	view.Traffic = dashboard.TrafficCard{
		Previous:      attrInt64(traffic, "data-previous"),
		Current:       attrInt64(traffic, "data-current"),
		ChangePercent: attrFloat(traffic, "data-change"),
		Share:         attrFloat(traffic, "data-share"),
	}

	favorites := doc.Find(`[data-card="favorites"]`).First()
	view.Favorites = dashboard.FavoritesCard{
		Previous:      attrInt64(favorites, "data-previous"),
		Current:       attrInt64(favorites, "data-current"),
		Added:         attrInt64(favorites, "data-added"),
		ChangePercent: attrFloat(favorites, "data-change"),
		Rank:          int(attrInt64(favorites, "data-rank")),
		PreviousRank:  int(attrInt64(favorites, "data-previous-rank")),
		Movement:      int(attrInt64(favorites, "data-movement")),
	}

	doc.Find(".leaderboard-row").Each(func(_ int, row *goquery.Selection) {
		view.Leaderboard = append(view.Leaderboard, dashboard.Row{
			Rank:      int(attrInt64(row, "data-rank")),
			Name:      attr(row, "data-name"),
			LogoID:    attr(row, "data-logo"),
			Favorites: attrInt64(row, "data-favorites"),
			Revenue:   attrDecimal(row, "data-revenue"),
			Traffic:   attrFloat(row, "data-traffic"),
			Target:    attr(row, "data-target") == "true",
			Hidden:    attr(row, "data-hidden") == "true",
			BarWidth:  int(attrInt64(row, "data-bar-width")),
		})
	})

	return view, nil
}

func attr(sel *goquery.Selection, name string) string {
	return strings.TrimSpace(sel.AttrOr(name, ""))
}

func attrInt64(sel *goquery.Selection, name string) int64 {
	n, _ := strconv.ParseInt(attr(sel, name), 10, 64)
	return n
}

func attrFloat(sel *goquery.Selection, name string) float64 {
	f, _ := strconv.ParseFloat(attr(sel, name), 64)
	return f
}

func attrDecimal(sel *goquery.Selection, name string) decimal.Decimal {
	d, err := decimal.NewFromString(attr(sel, name))
	if err != nil {
		return decimal.Zero
	}
	return d
}
