package usecase

import (
	"context"
	"fmt"
	"testing"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/infrastructure/classifier"
)

func examples(n, label int, stem string) []domain.TrainingExample {
	out := make([]domain.TrainingExample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.TrainingExample{
			Text:  fmt.Sprintf("%s 文章 %d", stem, i),
			Label: label,
		})
	}
	return out
}

func TestRetrainerDefersBelowMinimum(t *testing.T) {
	t.Parallel()

	model := classifier.New(nil)
	r := NewRetrainer(model, nil, 5, nil)

	version, err := r.Ingest(context.Background(), examples(3, 1, "能源"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if version != 0 {
		t.Fatalf("version before gate = %d, want 0", version)
	}
	if model.ModelVersion() != 0 {
		t.Fatal("no model should be published below the minimum")
	}
	if r.CorpusSize() != 3 {
		t.Fatalf("corpus size = %d, want 3", r.CorpusSize())
	}
}

func TestRetrainerTrainsAtGateAndOnEveryIngestAfter(t *testing.T) {
	t.Parallel()

	model := classifier.New(nil)
	r := NewRetrainer(model, nil, 5, nil)

	if _, err := r.Ingest(context.Background(), examples(3, 1, "能源")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	version, err := r.Ingest(context.Background(), examples(2, 0, "体育"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if version != 1 {
		t.Fatalf("version at gate = %d, want 1", version)
	}

	version, err = r.Ingest(context.Background(), examples(1, 1, "光伏"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if version != 2 {
		t.Fatalf("version after further ingest = %d, want 2", version)
	}
	if r.CorpusSize() != 6 {
		t.Fatalf("corpus size = %d, want 6", r.CorpusSize())
	}
}

func TestRetrainerTrainsFromSufficientSeed(t *testing.T) {
	t.Parallel()

	model := classifier.New(nil)
	seed := append(examples(3, 1, "能源"), examples(2, 0, "体育")...)

	NewRetrainer(model, seed, 5, nil)

	if model.ModelVersion() != 1 {
		t.Fatalf("seed at the minimum should publish version 1, got %d", model.ModelVersion())
	}
}
