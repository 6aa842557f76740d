package crawler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	dateSeps      = strings.NewReplacer("年", "-", "月", "-", "日", "-", ".", "-", "/", "-")
	ymdExpr       = regexp.MustCompile(`(20\d{2})-(\d{1,2})-(\d{1,2})`)
	ymdSplitExpr  = regexp.MustCompile(`(20\d{2})-(\d{1,2})[^\d]{0,20}?-(\d{1,2})`)
	ymdCompact    = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)
	datePathExpr  = regexp.MustCompile(`/20\d{2}[-/]\d{1,2}[-/]\d{1,2}/`)
	contentIDExpr = regexp.MustCompile(`content[_-]?\d+`)
	numPageExpr   = regexp.MustCompile(`/\d{6}/\d{2}/\d+\.s?html`)
)

// Path segments that mark government-notice sections; articles under them
// are dropped unless the title itself hits a keyword.
var blockKeys = []string{
	"tzgg", "zwgk", "zfxxgk", "gkml", "bsfw", "zcfg",
	"zhaobiao", "zbgg", "gggs", "gsgg", "jyxx", "xxgk",
}

// ExtractDate pulls a publish date out of page text or the URL, accepting
// dashed, dotted, CJK-suffixed, and compact forms. Returns "YYYY-MM-DD" or
// "" when nothing date-like is found.
func ExtractDate(text, pageURL string) string {
	s := dateSeps.Replace(text + " " + pageURL)

	if m := ymdExpr.FindStringSubmatch(s); m != nil {
		return normYMD(m[1], m[2], m[3])
	}
	if m := ymdSplitExpr.FindStringSubmatch(s); m != nil {
		return normYMD(m[1], m[2], m[3])
	}
	if m := ymdCompact.FindStringSubmatch(s); m != nil {
		return normYMD(m[1], m[2], m[3])
	}
	return ""
}

func normYMD(y, m, d string) string {
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return fmt.Sprintf("%s-%02d-%02d", y, month, day)
}

// WithinRange reports whether date falls inside the inclusive [start, end]
// bounds. Empty bounds pass; an empty date passes (undated records are kept
// and left to the reviewer).
func WithinRange(date, start, end string) bool {
	if date == "" {
		return true
	}
	if start != "" && date < start {
		return false
	}
	if end != "" && date > end {
		return false
	}
	return true
}

// ExtractTitle tries og:title, then h1/h2, then the <title> tag. A
// "site | headline" title keeps only the headline part.
func ExtractTitle(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := strings.TrimSpace(content); title != "" {
			return title
		}
	}

	for _, sel := range []string{"h1", "h2"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return collapseSpace(title)
		}
	}

	title := collapseSpace(doc.Find("title").First().Text())
	if strings.Contains(title, "|") {
		parts := strings.Split(title, "|")
		last := strings.TrimSpace(parts[len(parts)-1])
		if len([]rune(last)) >= 6 {
			return last
		}
	}
	return title
}

// ExtractExcerpt returns the leading body text with scripts and styles
// removed, whitespace collapsed, capped at limit runes.
func ExtractExcerpt(doc *goquery.Document, limit int) string {
	body := doc.Find("body").Clone()
	body.Find("script,style,noscript").Remove()

	text := collapseSpace(body.Text())
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// KeywordHit reports whether any keyword occurs in s (case-insensitive).
// An empty keyword set matches everything.
func KeywordHit(s string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	low := strings.ToLower(s)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && strings.Contains(low, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// LooksRelevant applies the hard pre-filter: blocklisted path segments need
// a keyword hit in the title, at least one keyword must appear in title or
// excerpt, and both fields must meet minimum lengths.
func LooksRelevant(urlPath, title, excerpt string, keywords []string, minTitle, minExcerpt int) bool {
	low := strings.ToLower(urlPath)
	for _, key := range blockKeys {
		if strings.Contains(low, "/"+key) {
			if !KeywordHit(title, keywords) {
				return false
			}
			break
		}
	}

	if len(keywords) > 0 && !KeywordHit(title+" "+excerpt, keywords) {
		return false
	}

	if len([]rune(strings.TrimSpace(title))) < minTitle {
		return false
	}
	if len([]rune(strings.TrimSpace(excerpt))) < minExcerpt {
		return false
	}
	return true
}

// looksLikeArticle is the generic fallback for domains without configured
// patterns: date-shaped paths or numbered content pages.
func looksLikeArticle(href string) bool {
	return datePathExpr.MatchString(href) ||
		contentIDExpr.MatchString(href) ||
		numPageExpr.MatchString(href)
}
