package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"NewsCrawler/internal/config"
	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/scanner"
)

const wechatHost = "mp.weixin.qq.com"

// WechatCrawler is the wechat channel: a search-engine driven collector of
// public-account articles. No login, no private API; strictly rate limited.
type WechatCrawler struct {
	client     *http.Client
	limiter    *rate.Limiter
	searchURL  string
	maxResults int
	logger     *slog.Logger
}

var _ scanner.Crawler = (*WechatCrawler)(nil)

// NewWechatCrawler wires the search endpoint and limits from configuration.
func NewWechatCrawler(client *http.Client, cfg config.CrawlerConfig, logger *slog.Logger) *WechatCrawler {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	maxResults := cfg.WechatMaxResults
	if maxResults <= 0 {
		maxResults = 30
	}
	return &WechatCrawler{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(600*time.Millisecond), 1),
		searchURL:  cfg.WechatSearchURL,
		maxResults: maxResults,
		logger:     logger,
	}
}

// Name identifies the channel inside the registry.
func (w *WechatCrawler) Name() string {
	return domain.ChannelWechat
}

// Crawl searches for the run's keywords and keeps links into the MP host.
// A failed search counts as one failed source, never an error.
func (w *WechatCrawler) Crawl(ctx context.Context, req scanner.Request) ([]domain.RawRecord, int, error) {
	query := strings.TrimSpace(strings.Join(req.Keywords, " "))
	if query == "" || w.searchURL == "" {
		return nil, 0, nil
	}

	doc, err := w.fetchSearch(ctx, query)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("wechat search failed", "error", err)
		}
		return nil, 1, nil
	}

	seen := map[string]struct{}{}
	var out []domain.RawRecord

	doc.Find(`a[href*="` + wechatHost + `"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}

		key := WechatKey(href)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}

		title := strings.Join(strings.Fields(link.Text()), " ")
		out = append(out, domain.RawRecord{
			Title:   title,
			URL:     href,
			Source:  wechatHost,
			Channel: domain.ChannelWechat,
		})
		return len(out) < w.maxResults
	})

	return out, 0, nil
}

func (w *WechatCrawler) fetchSearch(ctx context.Context, query string) (*goquery.Document, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.searchURL+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	return doc, nil
}

// WechatKey normalizes an MP article URL for dedup: the (mid, idx) query
// pair identifies an article across link variants; otherwise the URL is
// stripped of query and fragment.
func WechatKey(raw string) string {
	parsed, err := url.Parse(raw)
	if err == nil && strings.HasSuffix(parsed.Hostname(), wechatHost) && strings.HasPrefix(parsed.Path, "/s") {
		query := parsed.Query()
		mid := query.Get("mid")
		if mid == "" {
			mid = query.Get("appmsgid")
		}
		idx := query.Get("idx")
		if mid != "" && idx != "" {
			return fmt.Sprintf("mpwx:mid=%s&idx=%s", mid, idx)
		}
	}

	stripped := strings.SplitN(raw, "#", 2)[0]
	return strings.SplitN(stripped, "?", 2)[0]
}
