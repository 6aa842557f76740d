package ports

import (
	"context"
	"io"

	"NewsCrawler/internal/domain"
)

// RecordSource pulls raw candidate records from upstream channels.
// Fetch is best-effort: it returns whatever records were collected together
// with the count of sources that failed or timed out.
type RecordSource interface {
	Fetch(ctx context.Context, params domain.CrawlParams) ([]domain.RawRecord, int, error)
}

// Classifier scores a normalized record against the active model version.
// Keywords are only consulted by the untrained rule model (version 0).
type Classifier interface {
	Score(rec domain.CandidateRecord, keywords []string) (label int, probability float64)
	ModelVersion() int64
}

// Retrainer folds newly labeled examples into the training corpus and
// returns the model version active after ingestion.
type Retrainer interface {
	Ingest(ctx context.Context, examples []domain.TrainingExample) (int64, error)
}

// ReviewRepository persists accepted review rows and their training
// examples for history and model reproducibility.
type ReviewRepository interface {
	SaveReview(ctx context.Context, sub domain.ReviewSubmission, accepted []domain.AcceptedRecord) error
	TrainingData(ctx context.Context, limit int) ([]domain.TrainingExample, error)
}

// Exporter writes the accepted subset of a run to a durable artifact and
// serves artifacts back by file name.
type Exporter interface {
	Export(runID string, accepted []domain.AcceptedRecord) (domain.ExportArtifact, error)
	Open(fileName string) (io.ReadCloser, error)
}

// TemplateExporter renders submitted items into the operator's publicity
// report workbook.
type TemplateExporter interface {
	ExportTemplate(projectName string, items []domain.ReviewItem) (domain.ExportArtifact, error)
}
