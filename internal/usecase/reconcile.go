package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/metrics"
	"NewsCrawler/internal/normalize"
	"NewsCrawler/internal/ports"
	"NewsCrawler/internal/registry"
)

// Reconciler matches human-submitted label sets against a run's stored
// candidates and commits the accepted subset to export, persistence, and
// the retrainer.
type Reconciler struct {
	registry  *registry.Registry
	repo      ports.ReviewRepository
	exporter  ports.Exporter
	retrainer ports.Retrainer
	logger    *slog.Logger
}

// ReconcilerDeps wires the reconciliation collaborators.
type ReconcilerDeps struct {
	Registry  *registry.Registry
	Repo      ports.ReviewRepository
	Exporter  ports.Exporter
	Retrainer ports.Retrainer
	Logger    *slog.Logger
}

// NewReconciler constructs the reconciliation component.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	return &Reconciler{
		registry:  deps.Registry,
		repo:      deps.Repo,
		exporter:  deps.Exporter,
		retrainer: deps.Retrainer,
		logger:    deps.Logger,
	}
}

// Reconcile validates the submission against its run, accepts matching
// items, and commits them. Resubmitting for an already-reviewed run replays
// the prior result without mutating anything. On any commit failure the run
// stays open and the submission is retryable.
func (r *Reconciler) Reconcile(ctx context.Context, sub domain.ReviewSubmission) (domain.ReviewResult, error) {
	if sub.RunID == "" {
		return domain.ReviewResult{}, domain.Validationf("run_id is required")
	}

	run, replay, err := r.registry.AcquireReview(sub.RunID)
	if err != nil {
		metrics.ObserveReview(metrics.OutcomeError)
		return domain.ReviewResult{}, err
	}
	if replay {
		metrics.ObserveReview(metrics.OutcomeReplay)
		if r.logger != nil {
			r.logger.Info("review replayed", "run_id", sub.RunID, "saved", run.Result.Saved)
		}
		result := *run.Result
		result.Replayed = true
		return result, nil
	}

	accepted, unmatched, defaulted := matchItems(run, sub.Items)

	result, err := r.commit(ctx, run, sub, accepted)
	if err != nil {
		r.registry.Release(sub.RunID)
		metrics.ObserveReview(metrics.OutcomeError)
		return domain.ReviewResult{}, err
	}

	result.Unmatched = unmatched
	result.Defaulted = defaulted
	r.registry.Complete(sub.RunID, &result)
	metrics.ObserveReview(metrics.OutcomeSuccess)

	if r.logger != nil {
		r.logger.Info("review reconciled",
			"run_id", sub.RunID,
			"saved", result.Saved,
			"unmatched", unmatched,
			"defaulted", defaulted)
	}
	return result, nil
}

// commit writes the artifact, persists rows, and feeds the retrainer.
// Reconciliation counts as durable only when all three succeed.
func (r *Reconciler) commit(ctx context.Context, run *domain.CrawlRun, sub domain.ReviewSubmission, accepted []domain.AcceptedRecord) (domain.ReviewResult, error) {
	artifact, err := r.exporter.Export(run.ID, accepted)
	if err != nil {
		return domain.ReviewResult{}, fmt.Errorf("export run %s: %w", run.ID, err)
	}

	if r.repo != nil {
		if err := r.repo.SaveReview(ctx, sub, accepted); err != nil {
			return domain.ReviewResult{}, fmt.Errorf("persist review %s: %w", run.ID, err)
		}
	}

	if r.retrainer != nil {
		examples := make([]domain.TrainingExample, 0, len(accepted))
		for _, rec := range accepted {
			text := rec.Title
			if rec.Excerpt != "" {
				text = rec.Title + "\n" + rec.Excerpt
			}
			if text == "" {
				continue
			}
			examples = append(examples, domain.TrainingExample{Text: text, Label: rec.HumanLabel})
		}
		if _, err := r.retrainer.Ingest(ctx, examples); err != nil {
			return domain.ReviewResult{}, fmt.Errorf("ingest training examples for run %s: %w", run.ID, err)
		}
	}

	return domain.ReviewResult{
		Accepted: accepted,
		Saved:    len(accepted),
		CSVURL:   "/download/exports/" + artifact.FileName,
	}, nil
}

// matchItems maps submitted items onto stored candidates by canonical URL.
// Unmatched items are dropped with a count; a missing human label defaults
// to the stored prediction, also counted.
func matchItems(run *domain.CrawlRun, items []domain.ReviewItem) (accepted []domain.AcceptedRecord, unmatched, defaulted int) {
	byURL := make(map[string]domain.CandidateRecord, len(run.Records))
	for _, rec := range run.Records {
		byURL[rec.URL] = rec
	}

	claimed := map[string]struct{}{}
	for _, item := range items {
		canonical, ok := normalize.CanonicalURL(item.URL)
		if !ok {
			unmatched++
			continue
		}
		rec, ok := byURL[canonical]
		if !ok {
			unmatched++
			continue
		}
		// A duplicate submission row for the same URL counts once.
		if _, dup := claimed[canonical]; dup {
			continue
		}
		claimed[canonical] = struct{}{}

		label := rec.PredictedLabel
		if item.HumanLabel != nil {
			label = *item.HumanLabel
		} else {
			defaulted++
		}

		accepted = append(accepted, domain.AcceptedRecord{
			CandidateRecord: rec,
			HumanLabel:      label,
		})
	}
	return accepted, unmatched, defaulted
}
