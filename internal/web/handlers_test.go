package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"PropDashboards/internal/dashboard"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/infrastructure/capture"
	"PropDashboards/internal/ranking"
	"PropDashboards/internal/usecase"
)

type staticSource struct {
	snapshots map[string]domain.Snapshot
}

func (s staticSource) Load(_ context.Context, category string) (domain.Snapshot, error) {
	snap, ok := s.snapshots[category]
	if !ok {
		return domain.Snapshot{}, domain.ErrUnknownCategory
	}
	return snap, nil
}

func (s staticSource) Categories() []domain.Category {
	return []domain.Category{s.snapshots["futures"].Category, s.snapshots["prop-trading"].Category}
}

type fakeGenerator struct {
	events []domain.Progress
	err    error
	got    usecase.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req usecase.Request, progress func(domain.Progress)) (usecase.Result, error) {
	f.got = req
	for _, ev := range f.events {
		progress(ev)
	}
	return usecase.Result{}, f.err
}

func testSnapshots() map[string]domain.Snapshot {
	names := []string{"FundingPips", "The5ers", "FTMO", "Alpha Capital", "E8 Markets", "Blue Guardian", "Maven"}
	records := make([]domain.FirmRecord, len(names))
	for i, name := range names {
		records[i] = domain.FirmRecord{
			Name:         name,
			Rank:         i + 1,
			PreviousRank: len(names) - i,
			Metrics: domain.Metrics{
				RevenuePrevious:   decimal.RequireFromString("1000000.50").Sub(decimal.NewFromInt(int64(i * 1000))),
				RevenueCurrent:    decimal.RequireFromString("1350500.75").Sub(decimal.NewFromInt(int64(i * 1000))),
				RevenueChange:     12.5,
				FavoritesPrevious: int64(900 - i*10),
				FavoritesCurrent:  int64(1000 - i*10),
				FavoritesAdded:    100,
				FavoritesChange:   11.111,
				TrafficPrevious:   int64(4000 + i),
				TrafficCurrent:    int64(4400 + i),
				TrafficIncrease:   10,
				CFDShare:          12.345 + float64(i),
			},
		}
	}
	futures := []domain.FirmRecord{
		{Name: "Apex", Rank: 1, PreviousRank: 1},
		{Name: "Topstep", Rank: 2, PreviousRank: 3},
		{Name: "Lucid", Rank: 3},
	}
	return map[string]domain.Snapshot{
		"prop-trading": {
			Category: domain.Category{ID: "prop-trading", Name: "Prop Trading", Visitors: 105844, Competitors: "names"},
			Week:     "Aug 1 - Aug 7",
			Records:  records,
		},
		"futures": {
			Category: domain.Category{ID: "futures", Name: "Futures", Visitors: 108346, Competitors: "anonymize"},
			Week:     "Aug 1 - Aug 7",
			Records:  futures,
		},
	}
}

func newTestServer(t *testing.T, gen Generator, outputDir string) *Server {
	t.Helper()
	s, err := New(Deps{
		Source:          staticSource{snapshots: testSnapshots()},
		Generator:       gen,
		OutputDir:       outputDir,
		DefaultCategory: "prop-trading",
		Width:           1560,
		Height:          850,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresSource(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}); err == nil {
		t.Fatalf("expected missing source error")
	}
}

func TestHealthAndCategories(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil, t.TempDir()).Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/categories", "")
	var cats struct {
		Categories []domain.Category `json:"categories"`
		Default    string            `json:"default"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(cats.Categories) != 2 || cats.Categories[0].ID != "futures" || cats.Default != "prop-trading" {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestCategoryData(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil, t.TempDir()).Handler()

	rec := do(t, h, http.MethodGet, "/api/category-data?category=futures", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body categoryDataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Name != "Futures" || body.Visitors != 108346 || body.Week != "Aug 1 - Aug 7" || len(body.Firms) != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}

	rec = do(t, h, http.MethodGet, "/api/category-data", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"category":"prop-trading"`) {
		t.Fatalf("expected default category, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/category-data?category=crypto", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}
}

func TestWindowAPI(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil, t.TempDir()).Handler()

	rec := do(t, h, http.MethodGet, "/api/window?firm=Maven", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var body windowResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Above != 3 || body.Below != 1 || body.Mode != ranking.ModeNames {
		t.Fatalf("unexpected defaults: %+v", body)
	}
	var got []string
	for _, e := range body.Window {
		got = append(got, e.Record.Name)
	}
	if strings.Join(got, ",") != "FTMO,Alpha Capital,E8 Markets,Blue Guardian,Maven" {
		t.Fatalf("unexpected window: %v", got)
	}

	rec = do(t, h, http.MethodGet, "/api/window?category=futures&firm=topstep", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != ranking.ModeAnonymize || body.Firm != "Topstep" || body.Window[0].Record.Name != ranking.Placeholder || !body.Window[1].Target {
		t.Fatalf("unexpected anonymized window: %+v", body)
	}

	rec = do(t, h, http.MethodGet, "/api/window?firm=Maven&above=9223372036854775807&below=9223372036854775807", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("huge window sizes: unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Window) != 5 || body.Window[4].Record.Name != "Maven" {
		t.Fatalf("unexpected huge window: %+v", body.Window)
	}

	cases := []struct {
		target string
		status int
	}{
		{"/api/window", http.StatusBadRequest},
		{"/api/window?firm=FTMO&above=x", http.StatusBadRequest},
		{"/api/window?firm=FTMO&below=1.5", http.StatusBadRequest},
		{"/api/window?firm=FTMO&above=-1", http.StatusBadRequest},
		{"/api/window?firm=FTMO&mode=sepia", http.StatusBadRequest},
		{"/api/window?firm=Nobody", http.StatusNotFound},
		{"/api/window?firm=FTMO&category=crypto", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(t, h, http.MethodGet, tc.target, ""); rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.status, rec.Code)
		}
	}
}

func TestDashboardPageRoundTripsThroughCapture(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer(t, nil, t.TempDir()).Handler())
	defer srv.Close()

	snap := testSnapshots()["prop-trading"]
	target, _ := snap.Find("Alpha Capital")
	want, err := dashboard.Build(snap, target, dashboard.DefaultOptions())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	got, err := capture.NewPageCapturer(srv.Client(), srv.URL, capture.Options{Attempts: 1}).Capture(context.Background(), "prop-trading", "alpha-capital")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	if got.Firm != want.Firm || got.Week != want.Week || got.LogoID != want.LogoID || got.Mode != want.Mode {
		t.Fatalf("header mismatch:\n got %+v\nwant %+v", got, want)
	}
	if got.Category.ID != want.Category.ID || got.Category.Name != want.Category.Name || got.Category.Visitors != want.Category.Visitors {
		t.Fatalf("category mismatch: %+v", got.Category)
	}
	if !got.Revenue.Previous.Equal(want.Revenue.Previous) || !got.Revenue.Current.Equal(want.Revenue.Current) || got.Revenue.ChangePercent != want.Revenue.ChangePercent {
		t.Fatalf("revenue mismatch: %+v vs %+v", got.Revenue, want.Revenue)
	}
	if got.Traffic != want.Traffic || got.Favorites != want.Favorites {
		t.Fatalf("card mismatch: %+v %+v vs %+v %+v", got.Traffic, got.Favorites, want.Traffic, want.Favorites)
	}
	if len(got.Leaderboard) != len(want.Leaderboard) {
		t.Fatalf("leaderboard length %d, want %d", len(got.Leaderboard), len(want.Leaderboard))
	}
	for i := range want.Leaderboard {
		g, w := got.Leaderboard[i], want.Leaderboard[i]
		if !g.Revenue.Equal(w.Revenue) {
			t.Fatalf("row %d revenue %s, want %s", i, g.Revenue, w.Revenue)
		}
		g.Revenue, w.Revenue = decimal.Zero, decimal.Zero
		if g != w {
			t.Fatalf("row %d mismatch:\n got %+v\nwant %+v", i, g, w)
		}
	}
}

func TestDashboardPageErrors(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil, t.TempDir()).Handler()

	if rec := do(t, h, http.MethodGet, "/dashboard/nobody", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/dashboard/ftmo?category=crypto", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/dashboard/apex?category=futures", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `data-name="???"`) {
		t.Fatalf("expected anonymized page, got %d", rec.Code)
	}
}

func TestIndexListsFirms(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil, t.TempDir()).Handler()
	rec := do(t, h, http.MethodGet, "/?category=futures", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/dashboard/topstep?category=futures"`) || !strings.Contains(body, "108,346 visitors") {
		t.Fatalf("unexpected index page:\n%s", body)
	}
}

func readEvents(t *testing.T, body string) []domain.Progress {
	t.Helper()
	var events []domain.Progress
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			t.Fatalf("unexpected sse line %q", line)
		}
		var ev domain.Progress
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestGenerateStreamsProgress(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{events: []domain.Progress{
		{Type: domain.ProgressStart, Total: 2},
		{Type: domain.ProgressStep, Total: 2, Completed: 1, Current: "FTMO", Dashboard: &domain.GeneratedDashboard{Firm: "FTMO", Filename: "FTMO.png"}},
		{Type: domain.ProgressError, Total: 2, Completed: 2, Current: "Maven", Error: "boom"},
		{Type: domain.ProgressComplete, Total: 2, Completed: 2},
	}}
	h := newTestServer(t, gen, t.TempDir()).Handler()

	rec := do(t, h, http.MethodPost, "/api/generate", `{"firms":["FTMO","Maven"],"force":true}`)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if gen.got.Category != "prop-trading" || !gen.got.Force || len(gen.got.Firms) != 2 {
		t.Fatalf("unexpected request: %+v", gen.got)
	}
	events := readEvents(t, rec.Body.String())
	if len(events) != 4 || events[0].Type != domain.ProgressStart || events[3].Type != domain.ProgressComplete {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[1].Dashboard == nil || events[1].Dashboard.Filename != "FTMO.png" || events[2].Error != "boom" {
		t.Fatalf("unexpected event payloads: %+v", events)
	}
}

func TestGenerateReportsSetupErrors(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("load snapshot: unknown category")}
	h := newTestServer(t, gen, t.TempDir()).Handler()

	rec := do(t, h, http.MethodPost, "/api/generate", "")
	events := readEvents(t, rec.Body.String())
	if len(events) != 1 || events[0].Type != domain.ProgressError || !strings.Contains(events[0].Error, "unknown category") {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestGenerateValidatesRequest(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	h := newTestServer(t, gen, t.TempDir()).Handler()

	for _, body := range []string{
		`{"scale":9}`,
		`{"mode":"sepia"}`,
		`{"firms":"FTMO"}`,
		`{"unexpected":true}`,
		`{"category":`,
	} {
		rec := do(t, h, http.MethodPost, "/api/generate", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
	}

	rec := do(t, newTestServer(t, nil, t.TempDir()).Handler(), http.MethodPost, "/api/generate", "{}")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without generator, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/generate", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDashboardFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "FTMO.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h := newTestServer(t, nil, dir).Handler()

	rec := do(t, h, http.MethodGet, "/api/dashboards/FTMO.png", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "public, max-age=3600" || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected headers: %v", rec.Header())
	}

	if rec := do(t, h, http.MethodGet, "/api/dashboards/Missing.png", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/dashboards/..secret.png", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrUnknownCategory, http.StatusBadRequest},
		{ranking.ErrInvalidWindow, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
