package scanner

import (
	"context"
	"fmt"

	"NewsCrawler/internal/domain"
)

// Site describes one configured news site with its channel pages and the
// URL shapes that identify article pages on it.
type Site struct {
	Name            string
	Domain          string
	ChannelPages    []string
	ArticlePatterns []string
}

// Request carries all parameters required to execute one channel crawl.
type Request struct {
	Keywords    []string
	Sites       []Site
	StartDate   string
	EndDate     string
	UseAdvanced bool
}

// Crawler captures a single channel implementation (site patterns, wechat,
// etc.). Crawl returns collected records plus the count of sources that
// failed; per-source failures never abort the whole crawl.
type Crawler interface {
	Name() string
	Crawl(ctx context.Context, req Request) ([]domain.RawRecord, int, error)
}

// Registry keeps a mapping from channel names to their implementations.
type Registry struct {
	crawlers map[string]Crawler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{crawlers: map[string]Crawler{}}
}

// Register adds or replaces a crawler implementation.
func (r *Registry) Register(crawler Crawler) {
	if r.crawlers == nil {
		r.crawlers = map[string]Crawler{}
	}
	r.crawlers[crawler.Name()] = crawler
}

// Resolve returns a crawler by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Crawler, error) {
	if crawler, ok := r.crawlers[name]; ok {
		return crawler, nil
	}
	return nil, fmt.Errorf("crawler %s is not registered", name)
}
