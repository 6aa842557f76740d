package normalize

import (
	"net/url"
	"strings"

	"NewsCrawler/internal/domain"
)

// DefaultExcerptLimit caps excerpt length after whitespace collapsing.
const DefaultExcerptLimit = 240

// Query parameters that carry tracking state, not identity.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"spm":          {},
	"from":         {},
	"srcid":        {},
	"share_token":  {},
}

// CanonicalURL produces the stable form used as a record's identity within
// a run: lowercased scheme/host, tracking parameters and fragment stripped,
// trailing slash removed. Returns false for unparseable or non-http URLs.
func CanonicalURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		return "", false
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if _, ok := trackingParams[key]; ok {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), true
}

// CollapseExcerpt collapses runs of whitespace to single spaces and caps the
// result at limit runes. A non-positive limit falls back to the default.
func CollapseExcerpt(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLimit
	}
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return collapsed
}

// Record canonicalizes a raw record into a candidate, or reports false when
// the record must be dropped (unparseable URL).
func Record(raw domain.RawRecord, excerptLimit int) (domain.CandidateRecord, bool) {
	canonical, ok := CanonicalURL(raw.URL)
	if !ok {
		return domain.CandidateRecord{}, false
	}

	channel := raw.Channel
	if channel == "" {
		channel = domain.ChannelStandard
	}

	return domain.CandidateRecord{
		Title:   strings.TrimSpace(raw.Title),
		URL:     canonical,
		Source:  strings.TrimSpace(raw.Source),
		Date:    strings.TrimSpace(raw.Date),
		Excerpt: CollapseExcerpt(raw.Excerpt, excerptLimit),
		Channel: channel,
	}, true
}
