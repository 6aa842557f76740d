package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/ports"
)

// Column layout of the operator's publicity report: the platform and remark
// columns stay blank for manual completion.
var templateHeader = []any{"名称", "序号", "新闻标题", "报道媒体", "刊登平台", "媒体链接", "备注"}

const (
	defaultProjectName  = "项目"
	templateSheetName   = "Sheet1"
	templateColumnWidth = 22
)

var unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// TemplateExporter writes publicity report workbooks into the shared export
// directory, one uniquely named artifact per request.
type TemplateExporter struct {
	dir string
	now func() time.Time
}

var _ ports.TemplateExporter = (*TemplateExporter)(nil)

// NewTemplateExporter ensures the export directory exists.
func NewTemplateExporter(dir string) (*TemplateExporter, error) {
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &TemplateExporter{dir: dir, now: time.Now}, nil
}

// ExportTemplate renders the submitted items into the report layout: one row
// per item carrying the project name, a 1-based index, title, source, and
// link.
func (e *TemplateExporter) ExportTemplate(projectName string, items []domain.ReviewItem) (domain.ExportArtifact, error) {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		projectName = defaultProjectName
	}

	artifactID := uuid.NewString()
	fileName := fmt.Sprintf("template_%s_%s.xlsx", sanitizeName(projectName), artifactID)
	path := filepath.Join(e.dir, fileName)

	workbook := excelize.NewFile()
	defer workbook.Close()

	if err := workbook.SetSheetRow(templateSheetName, "A1", &templateHeader); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("write header: %w", err)
	}
	for i, item := range items {
		row := []any{projectName, i + 1, item.Title, item.Source, "", item.URL, ""}
		cell := fmt.Sprintf("A%d", i+2)
		if err := workbook.SetSheetRow(templateSheetName, cell, &row); err != nil {
			return domain.ExportArtifact{}, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	styleID, err := workbook.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("build header style: %w", err)
	}
	if err := workbook.SetCellStyle(templateSheetName, "A1", "G1", styleID); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("style header: %w", err)
	}
	if err := workbook.SetColWidth(templateSheetName, "A", "G", templateColumnWidth); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("size columns: %w", err)
	}

	// O_EXCL guards the never-overwrite invariant, same as the CSV artifacts.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("create artifact: %w", err)
	}
	if err := workbook.Write(file); err != nil {
		file.Close()
		return domain.ExportArtifact{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return domain.ExportArtifact{}, fmt.Errorf("close artifact: %w", err)
	}

	return domain.ExportArtifact{
		ID:         artifactID,
		FileName:   fileName,
		Path:       path,
		SavedCount: len(items),
		CreatedAt:  e.now(),
	}, nil
}

// sanitizeName keeps letters, digits, underscores, and dashes so the project
// name cannot smuggle path separators into the artifact name.
func sanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return defaultProjectName
	}
	return cleaned
}
