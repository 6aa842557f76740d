// Package storage persists accepted reviews and the append-only training
// corpus into Postgres.
//
// Expected schema:
//
//	CREATE TABLE reviews (
//	    id BIGSERIAL PRIMARY KEY,
//	    run_id TEXT NOT NULL,
//	    title TEXT, url TEXT NOT NULL, source TEXT, date TEXT, excerpt TEXT,
//	    channel TEXT,
//	    predicted_label INT, human_label INT,
//	    keywords TEXT[], media_names TEXT[],
//	    created_at TIMESTAMPTZ DEFAULT NOW()
//	);
//	CREATE TABLE training_data (
//	    id BIGSERIAL PRIMARY KEY,
//	    text TEXT NOT NULL,
//	    label INT NOT NULL
//	);
package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/ports"
)

// PostgresRepository writes review rows and training examples in one
// transaction so the corpus never drifts from the review history.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ReviewRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation. A nil db turns the
// repository into a no-op, which keeps local runs without Postgres working.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveReview appends the accepted rows of a reconciliation plus their
// derived training examples.
func (r *PostgresRepository) SaveReview(ctx context.Context, sub domain.ReviewSubmission, accepted []domain.AcceptedRecord) error {
	if r.db == nil || len(accepted) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	reviews := r.builder.
		Insert("reviews").
		Columns("run_id", "title", "url", "source", "date", "excerpt", "channel",
			"predicted_label", "human_label", "keywords", "media_names")

	training := r.builder.
		Insert("training_data").
		Columns("text", "label")

	trainingRows := 0
	for _, rec := range accepted {
		reviews = reviews.Values(
			sub.RunID,
			rec.Title,
			rec.URL,
			rec.Source,
			rec.Date,
			rec.Excerpt,
			rec.Channel,
			rec.PredictedLabel,
			rec.HumanLabel,
			pq.Array(sub.Keywords),
			pq.Array(sub.MediaNames),
		)

		if text := trainingText(rec); text != "" {
			training = training.Values(text, rec.HumanLabel)
			trainingRows++
		}
	}

	query, args, err := reviews.ToSql()
	if err != nil {
		return fmt.Errorf("build review insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert reviews: %w", err)
	}

	if trainingRows > 0 {
		query, args, err = training.ToSql()
		if err != nil {
			return fmt.Errorf("build training insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert training data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review: %w", err)
	}
	return nil
}

// TrainingData loads the most recent slice of the training corpus; a
// non-positive limit loads everything.
func (r *PostgresRepository) TrainingData(ctx context.Context, limit int) ([]domain.TrainingExample, error) {
	if r.db == nil {
		return nil, nil
	}

	query := r.builder.
		Select("text", "label").
		From("training_data").
		OrderBy("id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build training select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query training data: %w", err)
	}
	defer rows.Close()

	var examples []domain.TrainingExample
	for rows.Next() {
		var example domain.TrainingExample
		if err := rows.Scan(&example.Text, &example.Label); err != nil {
			return nil, fmt.Errorf("scan training row: %w", err)
		}
		examples = append(examples, example)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return examples, nil
}

func trainingText(rec domain.AcceptedRecord) string {
	switch {
	case rec.Title != "" && rec.Excerpt != "":
		return rec.Title + "\n" + rec.Excerpt
	case rec.Title != "":
		return rec.Title
	default:
		return rec.Excerpt
	}
}
