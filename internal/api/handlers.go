package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/ports"
	"NewsCrawler/internal/usecase"
)

// Handler exposes the crawl/review/export/download surface over HTTP+JSON.
type Handler struct {
	crawler    *usecase.CrawlService
	reconciler *usecase.Reconciler
	exporter   ports.Exporter
	templates  ports.TemplateExporter
	logger     *slog.Logger
}

// NewHandler wires the use cases behind the HTTP surface.
func NewHandler(crawler *usecase.CrawlService, reconciler *usecase.Reconciler, exporter ports.Exporter, templates ports.TemplateExporter, logger *slog.Logger) *Handler {
	return &Handler{
		crawler:    crawler,
		reconciler: reconciler,
		exporter:   exporter,
		templates:  templates,
		logger:     logger,
	}
}

// Register mounts the API routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /crawl", h.handleCrawl)
	mux.HandleFunc("POST /review", h.handleReview)
	mux.HandleFunc("POST /export/xlsx_template", h.handleTemplate)
	mux.HandleFunc("GET /download/exports/{file}", h.handleDownload)
}

type crawlRequest struct {
	Keywords    []string `json:"keywords"`
	MediaNames  []string `json:"media_names"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	UseAdvanced bool     `json:"use_advanced"`
	AllowWechat bool     `json:"allow_wechat"`
}

type crawlResponse struct {
	RunID         string                   `json:"run_id"`
	Count         int                      `json:"count"`
	FailedSources int                      `json:"failed_sources"`
	ModelVersion  int64                    `json:"model_version"`
	Items         []domain.CandidateRecord `json:"items"`
}

func (h *Handler) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	run, failed, err := h.crawler.Run(r.Context(), domain.CrawlParams{
		Keywords:    req.Keywords,
		MediaNames:  req.MediaNames,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		UseAdvanced: req.UseAdvanced,
		AllowWechat: req.AllowWechat,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := run.Records
	if items == nil {
		items = []domain.CandidateRecord{}
	}
	writeJSON(w, http.StatusOK, crawlResponse{
		RunID:         run.ID,
		Count:         len(items),
		FailedSources: failed,
		ModelVersion:  run.ModelVersion,
		Items:         items,
	})
}

type reviewItem struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Source         string `json:"source"`
	Date           string `json:"date"`
	Excerpt        string `json:"excerpt"`
	PredictedLabel int    `json:"predicted_label"`
	HumanLabel     *int   `json:"human_label"`
}

type reviewRequest struct {
	RunID      string       `json:"run_id"`
	Items      []reviewItem `json:"items"`
	Keywords   []string     `json:"keywords"`
	MediaNames []string     `json:"media_names"`
}

type reviewResponse struct {
	Saved     int    `json:"saved"`
	Unmatched int    `json:"unmatched"`
	Defaulted int    `json:"defaulted"`
	Replayed  bool   `json:"replayed"`
	CSVURL    string `json:"csv_url,omitempty"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sub := domain.ReviewSubmission{
		RunID:      req.RunID,
		Keywords:   req.Keywords,
		MediaNames: req.MediaNames,
	}
	for _, item := range req.Items {
		sub.Items = append(sub.Items, domain.ReviewItem{
			Title:          item.Title,
			URL:            item.URL,
			Source:         item.Source,
			Date:           item.Date,
			Excerpt:        item.Excerpt,
			PredictedLabel: item.PredictedLabel,
			HumanLabel:     item.HumanLabel,
		})
	}

	result, err := h.reconciler.Reconcile(r.Context(), sub)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		Saved:     result.Saved,
		Unmatched: result.Unmatched,
		Defaulted: result.Defaulted,
		Replayed:  result.Replayed,
		CSVURL:    result.CSVURL,
	})
}

type templateRequest struct {
	ProjectName string       `json:"project_name"`
	Items       []reviewItem `json:"items"`
}

type templateResponse struct {
	XLSXURL string `json:"xlsx_url"`
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	items := make([]domain.ReviewItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.ReviewItem{
			Title:  item.Title,
			URL:    item.URL,
			Source: item.Source,
		})
	}

	artifact, err := h.templates.ExportTemplate(req.ProjectName, items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, templateResponse{
		XLSXURL: "/download/exports/" + artifact.FileName,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileName := r.PathValue("file")

	reader, err := h.exporter.Open(fileName)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	defer reader.Close()

	contentType := "text/csv; charset=utf-8"
	if strings.HasSuffix(fileName, ".xlsx") {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	if _, err := io.Copy(w, reader); err != nil && h.logger != nil {
		h.logger.Warn("artifact stream interrupted", "file", fileName, "error", err)
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRunExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrReviewInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("request failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
