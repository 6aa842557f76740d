package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/metrics"
	"NewsCrawler/internal/normalize"
	"NewsCrawler/internal/ports"
	"NewsCrawler/internal/registry"
)

// CrawlService runs the fetch -> normalize -> dedupe -> classify pipeline
// and registers the result as a new run.
type CrawlService struct {
	source       ports.RecordSource
	classifier   ports.Classifier
	registry     *registry.Registry
	excerptLimit int
	logger       *slog.Logger
}

// CrawlDeps wires the crawl pipeline's collaborators.
type CrawlDeps struct {
	Source       ports.RecordSource
	Classifier   ports.Classifier
	Registry     *registry.Registry
	ExcerptLimit int
	Logger       *slog.Logger
}

// NewCrawlService constructs the crawl pipeline.
func NewCrawlService(deps CrawlDeps) *CrawlService {
	return &CrawlService{
		source:       deps.Source,
		classifier:   deps.Classifier,
		registry:     deps.Registry,
		excerptLimit: deps.ExcerptLimit,
		logger:       deps.Logger,
	}
}

// Run executes one crawl and returns the open run plus the count of
// sources that failed along the way.
func (s *CrawlService) Run(ctx context.Context, params domain.CrawlParams) (*domain.CrawlRun, int, error) {
	if err := validateParams(params); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	raw, failed, err := s.source.Fetch(ctx, params)
	if err != nil {
		metrics.ObserveCrawl(time.Since(start), failed, metrics.OutcomeError)
		return nil, failed, fmt.Errorf("fetch records: %w", err)
	}

	seen := map[string]struct{}{}
	records := make([]domain.CandidateRecord, 0, len(raw))
	dropped := 0
	for _, rawRec := range raw {
		rec, ok := normalize.Record(rawRec, s.excerptLimit)
		if !ok {
			dropped++
			continue
		}
		// First occurrence of a canonical URL wins; repeats drop silently.
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}

		rec.PredictedLabel, rec.PredictedScore = s.classifier.Score(rec, params.Keywords)
		records = append(records, rec)
	}

	run := s.registry.Open(params, records, s.classifier.ModelVersion())
	metrics.ObserveCrawl(time.Since(start), failed, metrics.OutcomeSuccess)

	if s.logger != nil {
		s.logger.Info("crawl completed",
			"run_id", run.ID,
			"records", len(records),
			"raw", len(raw),
			"dropped", dropped,
			"failed_sources", failed,
			"model_version", run.ModelVersion,
			"elapsed", time.Since(start))
	}
	return run, failed, nil
}

func validateParams(params domain.CrawlParams) error {
	start, err := parseDate(params.StartDate)
	if err != nil {
		return domain.Validationf("invalid start_date %q: expected YYYY-MM-DD", params.StartDate)
	}
	end, err := parseDate(params.EndDate)
	if err != nil {
		return domain.Validationf("invalid end_date %q: expected YYYY-MM-DD", params.EndDate)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return domain.Validationf("end_date %s precedes start_date %s", params.EndDate, params.StartDate)
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", value)
}
