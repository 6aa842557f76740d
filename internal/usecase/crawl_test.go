package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/registry"
)

type fakeSource struct {
	records []domain.RawRecord
	failed  int
	err     error
}

func (f *fakeSource) Fetch(_ context.Context, _ domain.CrawlParams) ([]domain.RawRecord, int, error) {
	return f.records, f.failed, f.err
}

type fakeClassifier struct {
	label   int
	score   float64
	version int64
}

func (f *fakeClassifier) Score(_ domain.CandidateRecord, _ []string) (int, float64) {
	return f.label, f.score
}

func (f *fakeClassifier) ModelVersion() int64 { return f.version }

func longExcerpt(s string) string {
	return s + " " + strings.Repeat("正文内容", 10)
}

func TestCrawlRejectsBadDates(t *testing.T) {
	t.Parallel()

	s := NewCrawlService(CrawlDeps{
		Source:     &fakeSource{},
		Classifier: &fakeClassifier{},
		Registry:   registry.New(time.Hour, nil),
	})

	_, _, err := s.Run(context.Background(), domain.CrawlParams{StartDate: "2025/08/01"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, _, err = s.Run(context.Background(), domain.CrawlParams{
		StartDate: "2025-08-10",
		EndDate:   "2025-08-01",
	})
	if !domain.IsValidation(err) {
		t.Fatalf("expected inverted range to fail validation, got %v", err)
	}
}

func TestCrawlNormalizesDedupsAndClassifies(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		records: []domain.RawRecord{
			{
				Title:   "能源项目开工",
				URL:     "https://news.example.com/a.html?utm_source=weibo",
				Source:  "example.com",
				Excerpt: longExcerpt("第一篇"),
			},
			{
				// Same article behind a different tracking parameter.
				Title:   "能源项目开工",
				URL:     "https://news.example.com/a.html?spm=123",
				Source:  "example.com",
				Excerpt: longExcerpt("重复"),
			},
			{
				Title:   "第二篇文章",
				URL:     "https://news.example.com/b.html",
				Source:  "example.com",
				Excerpt: longExcerpt("第二篇"),
			},
			{
				Title:   "坏链接",
				URL:     "not a url",
				Excerpt: longExcerpt("丢弃"),
			},
		},
		failed: 1,
	}

	reg := registry.New(time.Hour, nil)
	s := NewCrawlService(CrawlDeps{
		Source:     source,
		Classifier: &fakeClassifier{label: 1, score: 0.8, version: 3},
		Registry:   reg,
	})

	run, failed, err := s.Run(context.Background(), domain.CrawlParams{Keywords: []string{"能源"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed sources = %d, want 1", failed)
	}
	if run.ModelVersion != 3 {
		t.Fatalf("model version = %d, want 3", run.ModelVersion)
	}
	if len(run.Records) != 2 {
		t.Fatalf("expected 2 records after dedup and drops, got %d: %+v", len(run.Records), run.Records)
	}

	first := run.Records[0]
	if first.URL != "https://news.example.com/a.html" {
		t.Fatalf("expected canonical url, got %q", first.URL)
	}
	if first.PredictedLabel != 1 || first.PredictedScore != 0.8 {
		t.Fatalf("expected classified record, got %+v", first)
	}

	stored, err := reg.Get(run.ID)
	if err != nil {
		t.Fatalf("run not registered: %v", err)
	}
	if stored.Status != domain.StatusOpen {
		t.Fatalf("registered run status = %q, want open", stored.Status)
	}
}

func TestCrawlFetchErrorIsWrapped(t *testing.T) {
	t.Parallel()

	cause := errors.New("upstream broken")
	s := NewCrawlService(CrawlDeps{
		Source:     &fakeSource{err: cause},
		Classifier: &fakeClassifier{},
		Registry:   registry.New(time.Hour, nil),
	})

	_, _, err := s.Run(context.Background(), domain.CrawlParams{})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}
