package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/infrastructure/classifier"
	"NewsCrawler/internal/infrastructure/export"
	"NewsCrawler/internal/registry"
	"NewsCrawler/internal/usecase"
)

type staticSource struct {
	records []domain.RawRecord
}

func (s *staticSource) Fetch(_ context.Context, _ domain.CrawlParams) ([]domain.RawRecord, int, error) {
	return s.records, 0, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	source := &staticSource{records: []domain.RawRecord{
		{
			Title:   "能源项目开工建设",
			URL:     "https://news.example.com/a.html",
			Source:  "example.com",
			Date:    "2025-08-10",
			Excerpt: "能源正文" + strings.Repeat("内容", 20),
		},
		{
			Title:   "另一条本地新闻报道",
			URL:     "https://news.example.com/b.html",
			Source:  "example.com",
			Excerpt: "普通正文" + strings.Repeat("内容", 20),
		},
	}}

	model := classifier.New(nil)
	reg := registry.New(time.Hour, nil)

	exportDir := t.TempDir()
	exporter, err := export.NewCSVExporter(exportDir)
	if err != nil {
		t.Fatalf("exporter: %v", err)
	}
	retrainer := usecase.NewRetrainer(model, nil, 20, nil)

	crawler := usecase.NewCrawlService(usecase.CrawlDeps{
		Source:     source,
		Classifier: model,
		Registry:   reg,
	})
	reconciler := usecase.NewReconciler(usecase.ReconcilerDeps{
		Registry:  reg,
		Exporter:  exporter,
		Retrainer: retrainer,
	})

	templates, err := export.NewTemplateExporter(exportDir)
	if err != nil {
		t.Fatalf("template exporter: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(crawler, reconciler, exporter, templates, nil).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any, out any) int {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCrawlReviewDownloadFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var crawl struct {
		RunID         string                   `json:"run_id"`
		Count         int                      `json:"count"`
		FailedSources int                      `json:"failed_sources"`
		ModelVersion  int64                    `json:"model_version"`
		Items         []domain.CandidateRecord `json:"items"`
	}
	status := postJSON(t, srv.URL+"/crawl", map[string]any{"keywords": []string{"能源"}}, &crawl)
	if status != http.StatusOK {
		t.Fatalf("crawl status = %d", status)
	}
	if crawl.RunID == "" || crawl.Count != 2 || len(crawl.Items) != 2 {
		t.Fatalf("unexpected crawl response: %+v", crawl)
	}
	if crawl.ModelVersion != 0 {
		t.Fatalf("untrained model version = %d, want 0", crawl.ModelVersion)
	}
	if crawl.Items[0].PredictedLabel != 1 {
		t.Fatalf("keyword title should predict 1: %+v", crawl.Items[0])
	}

	one := 1
	items := make([]map[string]any, 0, len(crawl.Items))
	for _, item := range crawl.Items {
		items = append(items, map[string]any{"url": item.URL, "human_label": one})
	}

	var review struct {
		Saved     int    `json:"saved"`
		Unmatched int    `json:"unmatched"`
		Defaulted int    `json:"defaulted"`
		Replayed  bool   `json:"replayed"`
		CSVURL    string `json:"csv_url"`
	}
	status = postJSON(t, srv.URL+"/review", map[string]any{"run_id": crawl.RunID, "items": items}, &review)
	if status != http.StatusOK {
		t.Fatalf("review status = %d", status)
	}
	if review.Saved != 2 || review.Unmatched != 0 || review.Replayed {
		t.Fatalf("unexpected review response: %+v", review)
	}
	if !strings.HasPrefix(review.CSVURL, "/download/exports/") {
		t.Fatalf("unexpected csv url: %q", review.CSVURL)
	}

	resp, err := http.Get(srv.URL + review.CSVURL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("download content type = %q", ct)
	}

	// Identical resubmission replays the stored result without a new artifact.
	var replay struct {
		Saved    int    `json:"saved"`
		Replayed bool   `json:"replayed"`
		CSVURL   string `json:"csv_url"`
	}
	status = postJSON(t, srv.URL+"/review", map[string]any{"run_id": crawl.RunID, "items": items}, &replay)
	if status != http.StatusOK {
		t.Fatalf("replay status = %d", status)
	}
	if !replay.Replayed || replay.Saved != review.Saved || replay.CSVURL != review.CSVURL {
		t.Fatalf("replay diverged: %+v vs %+v", replay, review)
	}
}

func TestReviewMissedLabelDefaultsToPrediction(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var crawl struct {
		RunID string                   `json:"run_id"`
		Items []domain.CandidateRecord `json:"items"`
	}
	if status := postJSON(t, srv.URL+"/crawl", map[string]any{"keywords": []string{"能源"}}, &crawl); status != http.StatusOK {
		t.Fatalf("crawl status = %d", status)
	}

	items := []map[string]any{{"url": crawl.Items[0].URL}}

	var review struct {
		Saved     int `json:"saved"`
		Defaulted int `json:"defaulted"`
	}
	if status := postJSON(t, srv.URL+"/review", map[string]any{"run_id": crawl.RunID, "items": items}, &review); status != http.StatusOK {
		t.Fatalf("review status = %d", status)
	}
	if review.Saved != 1 || review.Defaulted != 1 {
		t.Fatalf("unexpected review response: %+v", review)
	}
}

func TestExportTemplateFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var tmpl struct {
		XLSXURL string `json:"xlsx_url"`
	}
	status := postJSON(t, srv.URL+"/export/xlsx_template", map[string]any{
		"project_name": "晶澳科技",
		"items": []map[string]any{
			{"title": "能源项目开工", "source": "example.com", "url": "https://news.example.com/a.html"},
		},
	}, &tmpl)
	if status != http.StatusOK {
		t.Fatalf("template status = %d", status)
	}
	if !strings.HasPrefix(tmpl.XLSXURL, "/download/exports/") || !strings.HasSuffix(tmpl.XLSXURL, ".xlsx") {
		t.Fatalf("unexpected xlsx url: %q", tmpl.XLSXURL)
	}

	resp, err := http.Get(srv.URL + tmpl.XLSXURL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("download content type = %q", ct)
	}
}

func TestDomainErrorStatusMapping(t *testing.T) {
	t.Parallel()

	h := &Handler{}
	cases := []struct {
		err    error
		status int
	}{
		{domain.Validationf("bad input"), http.StatusBadRequest},
		{domain.ErrRunNotFound, http.StatusNotFound},
		{domain.ErrRunExpired, http.StatusGone},
		{domain.ErrReviewInProgress, http.StatusConflict},
		{domain.ErrArtifactNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeDomainError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("error %v mapped to %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestCrawlRejectsInvalidDates(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	var errResp map[string]string
	status := postJSON(t, srv.URL+"/crawl", map[string]any{"start_date": "08/01/2025"}, &errResp)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if errResp["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestReviewUnknownRun(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	status := postJSON(t, srv.URL+"/review", map[string]any{"run_id": "missing"}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}

func TestDownloadUnknownArtifact(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/download/exports/absent.csv")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestReviewExpiredRunIsGone(t *testing.T) {
	t.Parallel()

	source := &staticSource{records: []domain.RawRecord{{
		Title: "标题六个字以上", URL: "https://news.example.com/a.html",
	}}}
	model := classifier.New(nil)
	reg := registry.New(time.Hour, nil)
	base := time.Now()
	reg.SetClock(func() time.Time { return base })

	exportDir := t.TempDir()
	exporter, err := export.NewCSVExporter(exportDir)
	if err != nil {
		t.Fatalf("exporter: %v", err)
	}
	templates, err := export.NewTemplateExporter(exportDir)
	if err != nil {
		t.Fatalf("template exporter: %v", err)
	}

	crawler := usecase.NewCrawlService(usecase.CrawlDeps{Source: source, Classifier: model, Registry: reg})
	reconciler := usecase.NewReconciler(usecase.ReconcilerDeps{Registry: reg, Exporter: exporter})

	mux := http.NewServeMux()
	NewHandler(crawler, reconciler, exporter, templates, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var crawl struct {
		RunID string `json:"run_id"`
	}
	if status := postJSON(t, srv.URL+"/crawl", map[string]any{}, &crawl); status != http.StatusOK {
		t.Fatalf("crawl status = %d", status)
	}

	reg.SetClock(func() time.Time { return base.Add(2 * time.Hour) })

	status := postJSON(t, srv.URL+"/review", map[string]any{"run_id": crawl.RunID}, nil)
	if status != http.StatusGone {
		t.Fatalf("status = %d, want 410", status)
	}
}
