package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsCrawler/internal/config"
	"NewsCrawler/internal/scanner"
)

func newTestSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/channel", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
		<a href="/article_1.html">in range</a>
		<a href="/article_2.html">out of range</a>
		<a href="/article_3.html">off topic</a>
		<a href="/about.html">about page</a>
		<a href="#top">anchor</a>
		</body></html>`)
	})
	mux.HandleFunc("/article_1.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>City energy project launches downtown</h1>
		<p>Published 2025-08-10. The municipal energy authority announced a new storage
		facility serving the eastern districts, with construction starting this winter.</p>
		</body></html>`)
	})
	mux.HandleFunc("/article_2.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Energy review of an earlier year</h1>
		<p>Published 2024-01-05. A retrospective on energy policy covering the previous
		planning cycle and its outcomes across several districts.</p>
		</body></html>`)
	})
	mux.HandleFunc("/article_3.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Local sports club wins the regional final</h1>
		<p>Published 2025-08-12. The club took the trophy after a close match that went
		to extra time in front of a full stadium.</p>
		</body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testCrawlerConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		Workers:           2,
		RequestsPerSecond: 100,
		Burst:             10,
		CandidateBudget:   10,
		MinTitleLength:    6,
		MinExcerptLength:  30,
	}
}

func TestSiteCrawlerFiltersByKeywordAndDate(t *testing.T) {
	t.Parallel()

	srv := newTestSiteServer(t)
	c := NewSiteCrawler(srv.Client(), testCrawlerConfig(), nil)

	req := scanner.Request{
		Keywords:  []string{"energy"},
		StartDate: "2025-08-01",
		EndDate:   "2025-08-31",
		Sites: []scanner.Site{{
			Name:            "test",
			Domain:          "127.0.0.1",
			ChannelPages:    []string{srv.URL + "/channel"},
			ArticlePatterns: []string{`/article_\d+\.html`},
		}},
	}

	records, failed, err := c.Crawl(context.Background(), req)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if failed != 0 {
		t.Fatalf("expected no failed sites, got %d", failed)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(records), records)
	}

	rec := records[0]
	if rec.Title != "City energy project launches downtown" {
		t.Fatalf("unexpected title: %q", rec.Title)
	}
	if rec.Date != "2025-08-10" {
		t.Fatalf("unexpected date: %q", rec.Date)
	}
	if !strings.HasSuffix(rec.URL, "/article_1.html") {
		t.Fatalf("unexpected url: %q", rec.URL)
	}
	if rec.Channel != "standard" {
		t.Fatalf("unexpected channel: %q", rec.Channel)
	}
}

func TestSiteCrawlerCountsFailedSites(t *testing.T) {
	t.Parallel()

	srv := newTestSiteServer(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	c := NewSiteCrawler(srv.Client(), testCrawlerConfig(), nil)

	req := scanner.Request{
		Keywords: []string{"energy"},
		Sites: []scanner.Site{
			{
				Name:            "alive",
				Domain:          "127.0.0.1",
				ChannelPages:    []string{srv.URL + "/channel"},
				ArticlePatterns: []string{`/article_\d+\.html`},
			},
			{
				Name:         "dead",
				Domain:       "127.0.0.1",
				ChannelPages: []string{deadURL + "/channel"},
			},
		},
	}

	records, failed, err := c.Crawl(context.Background(), req)
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed site, got %d", failed)
	}
	if len(records) == 0 {
		t.Fatal("expected records from the healthy site")
	}
}

func TestSiteCrawlerSkipsSitesWithoutChannelPages(t *testing.T) {
	t.Parallel()

	c := NewSiteCrawler(&http.Client{}, testCrawlerConfig(), nil)

	records, failed, err := c.Crawl(context.Background(), scanner.Request{
		Sites: []scanner.Site{{Name: "adhoc", Domain: "example.com"}},
	})
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if failed != 0 || len(records) != 0 {
		t.Fatalf("expected empty result, got %d records, %d failed", len(records), failed)
	}
}
