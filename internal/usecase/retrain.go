package usecase

import (
	"context"
	"log/slog"
	"sync"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/infrastructure/classifier"
	"NewsCrawler/internal/ports"
)

// Retrainer accumulates labeled examples and retrains the classifier
// synchronously on every ingestion once the corpus reaches the configured
// minimum size. Below the minimum the corpus still grows but no model is
// published, so early low-sample models never go live.
type Retrainer struct {
	mu          sync.Mutex
	corpus      []domain.TrainingExample
	model       *classifier.Bayes
	minExamples int
	logger      *slog.Logger
}

var _ ports.Retrainer = (*Retrainer)(nil)

// NewRetrainer seeds the in-memory corpus (typically from the persisted
// training history) and binds the classifier whose model it publishes.
func NewRetrainer(model *classifier.Bayes, seed []domain.TrainingExample, minExamples int, logger *slog.Logger) *Retrainer {
	if minExamples <= 0 {
		minExamples = 20
	}
	r := &Retrainer{
		corpus:      append([]domain.TrainingExample(nil), seed...),
		model:       model,
		minExamples: minExamples,
		logger:      logger,
	}
	// A sufficiently large seed trains the first model immediately.
	if len(r.corpus) >= r.minExamples {
		r.model.Train(r.corpus)
	}
	return r
}

// Ingest appends the examples to the corpus and retrains when the gate is
// met. The corpus is append-only; examples are never removed.
func (r *Retrainer) Ingest(_ context.Context, examples []domain.TrainingExample) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.corpus = append(r.corpus, examples...)
	if len(r.corpus) < r.minExamples {
		if r.logger != nil {
			r.logger.Debug("retrain deferred",
				"corpus", len(r.corpus),
				"min_examples", r.minExamples)
		}
		return r.model.ModelVersion(), nil
	}

	version := r.model.Train(r.corpus)
	return version, nil
}

// CorpusSize reports the accumulated example count.
func (r *Retrainer) CorpusSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.corpus)
}
