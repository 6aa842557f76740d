package domain

import "time"

// Channel tags where a record came from.
const (
	ChannelStandard = "standard"
	ChannelWechat   = "wechat"
)

// RawRecord is what a crawler channel yields before normalization.
type RawRecord struct {
	Title   string
	URL     string
	Source  string
	Date    string
	Excerpt string
	Channel string
}

// CandidateRecord is one crawled article with its predicted relevance.
// Identity within a run is the canonical URL; immutable once classified.
type CandidateRecord struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Source         string  `json:"source"`
	Date           string  `json:"date"`
	Excerpt        string  `json:"excerpt"`
	Channel        string  `json:"channel"`
	PredictedLabel int     `json:"predicted_label"`
	PredictedScore float64 `json:"predicted_score"`
}

// CrawlParams is the closed set of options recognized by a crawl request.
// UseAdvanced widens the per-site candidate budget; AllowWechat enables
// the wechat channel.
type CrawlParams struct {
	Keywords    []string
	MediaNames  []string
	StartDate   string
	EndDate     string
	UseAdvanced bool
	AllowWechat bool
}

// RunStatus enumerates the lifecycle of a crawl run.
type RunStatus string

const (
	StatusOpen     RunStatus = "open"
	StatusReviewed RunStatus = "reviewed"
	StatusExpired  RunStatus = "expired"
)

// CrawlRun is one crawl invocation and its candidate set.
type CrawlRun struct {
	ID           string
	CreatedAt    time.Time
	Params       CrawlParams
	Records      []CandidateRecord
	ModelVersion int64
	Status       RunStatus

	// Result memoizes the outcome of a successful review so that
	// resubmissions replay it without re-mutating state.
	Result *ReviewResult
}

// ReviewItem is one human-judged row of a submission. HumanLabel is a
// pointer so an omitted label is distinguishable from an explicit 0.
type ReviewItem struct {
	Title          string
	URL            string
	Source         string
	Date           string
	Excerpt        string
	PredictedLabel int
	HumanLabel     *int
}

// ReviewSubmission carries a human-corrected label set for one run.
// Keywords and MediaNames echo the request context for audit.
type ReviewSubmission struct {
	RunID      string
	Items      []ReviewItem
	Keywords   []string
	MediaNames []string
}

// AcceptedRecord pairs a stored candidate with its authoritative human label.
type AcceptedRecord struct {
	CandidateRecord
	HumanLabel int
}

// ReviewResult is the outcome of a reconciliation.
type ReviewResult struct {
	Accepted  []AcceptedRecord
	Saved     int
	Unmatched int
	Defaulted int
	CSVURL    string
	Replayed  bool
}

// TrainingExample accumulates append-only in the retraining corpus.
type TrainingExample struct {
	Text  string
	Label int
}

// ExportArtifact identifies one durable CSV written after a reconciliation.
type ExportArtifact struct {
	ID         string
	RunID      string
	FileName   string
	Path       string
	SavedCount int
	CreatedAt  time.Time
}
