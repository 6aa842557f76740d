package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"NewsCrawler/internal/config"
	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/scanner"
)

const userAgent = "NewsCrawler/1.0"

// SiteCrawler is the standard channel: it scans each site's channel pages
// for article-shaped links, then visits candidates to extract title,
// excerpt, and date. Sites are crawled concurrently under a worker bound;
// a failing or hung site never blocks the others.
type SiteCrawler struct {
	client     *http.Client
	limiter    *rate.Limiter
	workers    int
	timeout    time.Duration
	budget     int
	advBudget  int
	minTitle   int
	minExcerpt int
	logger     *slog.Logger
}

var _ scanner.Crawler = (*SiteCrawler)(nil)

// NewSiteCrawler wires an HTTP client and crawl bounds from configuration.
func NewSiteCrawler(client *http.Client, cfg config.CrawlerConfig, logger *slog.Logger) *SiteCrawler {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SiteCrawler{
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		workers:    workers,
		timeout:    cfg.SourceTimeout.Std(),
		budget:     cfg.CandidateBudget,
		advBudget:  cfg.AdvancedBudget,
		minTitle:   cfg.MinTitleLength,
		minExcerpt: cfg.MinExcerptLength,
		logger:     logger,
	}
}

// Name identifies the channel inside the registry.
func (c *SiteCrawler) Name() string {
	return domain.ChannelStandard
}

// Crawl fans out over the requested sites. Records collected before a
// per-site failure are still returned; the failure adds to the count.
func (c *SiteCrawler) Crawl(ctx context.Context, req scanner.Request) ([]domain.RawRecord, int, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		all    []domain.RawRecord
		failed int
	)
	sem := make(chan struct{}, c.workers)

	for _, site := range req.Sites {
		wg.Add(1)
		go func(site scanner.Site) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sctx := ctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, c.timeout)
				defer cancel()
			}

			records, err := c.crawlSite(sctx, site, req)

			mu.Lock()
			defer mu.Unlock()
			all = append(all, records...)
			if err != nil {
				failed++
				c.debug("site crawl failed", "site", site.Name, "error", err)
			} else {
				c.debug("site crawled", "site", site.Name, "records", len(records))
			}
		}(site)
	}
	wg.Wait()

	return all, failed, nil
}

func (c *SiteCrawler) crawlSite(ctx context.Context, site scanner.Site, req scanner.Request) ([]domain.RawRecord, error) {
	if len(site.ChannelPages) == 0 {
		return nil, nil
	}

	patterns, err := compilePatterns(site.ArticlePatterns)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	budget := c.budget
	if req.UseAdvanced && c.advBudget > budget {
		budget = c.advBudget
	}
	if budget <= 0 {
		budget = 30
	}

	candidates, pageErrs := c.collectCandidates(ctx, site, patterns, budget)
	if len(candidates) == 0 && pageErrs == len(site.ChannelPages) {
		return nil, fmt.Errorf("site %s: all %d channel pages failed", site.Name, pageErrs)
	}

	var out []domain.RawRecord
	for _, href := range candidates {
		if ctx.Err() != nil {
			// Timed out or cancelled: hand back what was collected so far;
			// the caller counts this site as failed.
			return out, ctx.Err()
		}

		doc, err := c.fetchDocument(ctx, href)
		if err != nil {
			continue
		}

		title := ExtractTitle(doc)
		excerpt := ExtractExcerpt(doc, 0)
		parsed, _ := url.Parse(href)
		path := ""
		if parsed != nil {
			path = parsed.Path
		}
		if !LooksRelevant(path, title, excerpt, req.Keywords, c.minTitle, c.minExcerpt) {
			continue
		}

		date := ExtractDate(title+" "+excerpt, href)
		if !WithinRange(date, req.StartDate, req.EndDate) {
			continue
		}

		out = append(out, domain.RawRecord{
			Title:   title,
			URL:     href,
			Source:  site.Domain,
			Date:    date,
			Excerpt: excerpt,
			Channel: domain.ChannelStandard,
		})
	}
	return out, nil
}

func (c *SiteCrawler) collectCandidates(ctx context.Context, site scanner.Site, patterns []*regexp.Regexp, budget int) ([]string, int) {
	seen := map[string]struct{}{}
	var candidates []string
	pageErrs := 0

	for _, page := range site.ChannelPages {
		if len(candidates) >= budget || ctx.Err() != nil {
			break
		}

		doc, err := c.fetchDocument(ctx, page)
		if err != nil {
			pageErrs++
			continue
		}

		doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			abs := absolutize(page, href)
			if abs == "" {
				return true
			}
			if _, ok := seen[abs]; ok {
				return true
			}
			seen[abs] = struct{}{}

			if isArticleURL(site.Domain, patterns, abs) {
				candidates = append(candidates, abs)
			}
			return len(candidates) < budget
		})
	}

	return candidates, pageErrs
}

func (c *SiteCrawler) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (c *SiteCrawler) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid article pattern %q: %w", p, err)
		}
		compiled = append(compiled, expr)
	}
	return compiled, nil
}

func isArticleURL(siteDomain string, patterns []*regexp.Regexp, href string) bool {
	parsed, err := url.Parse(href)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	if RegDomain(parsed.Hostname()) != RegDomain(siteDomain) {
		return false
	}
	if len(patterns) == 0 {
		return looksLikeArticle(href)
	}
	for _, p := range patterns {
		if p.MatchString(href) {
			return true
		}
	}
	return false
}

func absolutize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}
