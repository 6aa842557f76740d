// Package export writes the human-approved subset of a run to durable CSV
// artifacts. Artifacts are append-only: every successful reconciliation
// creates a new uniquely named file, nothing is ever overwritten.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/ports"
)

var header = []string{"title", "url", "source", "date", "excerpt", "predicted_label", "human_label"}

// CSVExporter stores artifacts in a single directory and serves them back
// by bare file name.
type CSVExporter struct {
	dir string
	now func() time.Time
}

var _ ports.Exporter = (*CSVExporter)(nil)

// NewCSVExporter ensures the export directory exists.
func NewCSVExporter(dir string) (*CSVExporter, error) {
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &CSVExporter{dir: dir, now: time.Now}, nil
}

// Export writes one artifact for the accepted set. The human label is the
// authoritative label column; the prediction is kept alongside for audit.
func (e *CSVExporter) Export(runID string, accepted []domain.AcceptedRecord) (domain.ExportArtifact, error) {
	artifactID := uuid.NewString()
	fileName := fmt.Sprintf("review_%s_%s.csv", runID, artifactID)
	path := filepath.Join(e.dir, fileName)

	// O_EXCL guards the never-overwrite invariant.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("create artifact: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		file.Close()
		return domain.ExportArtifact{}, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range accepted {
		row := []string{
			rec.Title,
			rec.URL,
			rec.Source,
			rec.Date,
			rec.Excerpt,
			strconv.Itoa(rec.PredictedLabel),
			strconv.Itoa(rec.HumanLabel),
		}
		if err := writer.Write(row); err != nil {
			file.Close()
			return domain.ExportArtifact{}, fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return domain.ExportArtifact{}, fmt.Errorf("flush artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("close artifact: %w", err)
	}

	return domain.ExportArtifact{
		ID:         artifactID,
		RunID:      runID,
		FileName:   fileName,
		Path:       path,
		SavedCount: len(accepted),
		CreatedAt:  e.now(),
	}, nil
}

// Open streams an artifact by file name. Only bare names inside the export
// directory are served.
func (e *CSVExporter) Open(fileName string) (io.ReadCloser, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return nil, domain.ErrArtifactNotFound
	}

	file, err := os.Open(filepath.Join(e.dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return file, nil
}
