// Package crawler fetches the pages of a customer help site for
// indexing. Crawls stay on the starting host and are bounded by depth
// and page count so a runaway sitemap cannot stall an ingest job.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/replyforge/replyforge/internal/ingest"
)

// Config bounds one crawl
type Config struct {
	MaxDepth     int
	MaxPages     int
	RequestDelay time.Duration
	UserAgent    string
}

// DefaultConfig returns conservative crawl bounds
func DefaultConfig() Config {
	return Config{
		MaxDepth:     3,
		MaxPages:     50,
		RequestDelay: 200 * time.Millisecond,
		UserAgent:    "replyforge-crawler/1.0",
	}
}

// Page is one crawled page with its extracted text
type Page struct {
	URL   string
	Title string
	Text  string
}

type Crawler struct {
	cfg Config
}

func New(cfg Config) *Crawler {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultConfig().MaxPages
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	return &Crawler{cfg: cfg}
}

// Crawl walks the site starting at startURL and returns the pages that
// yielded readable text. Pages that fail to parse are skipped, the
// crawl only errors when not a single page could be fetched.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", startURL)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname(), parsed.Host),
		colly.MaxDepth(c.cfg.MaxDepth),
		colly.UserAgent(c.cfg.UserAgent),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      c.cfg.RequestDelay,
	})

	var (
		mu      sync.Mutex
		pages   []Page
		lastErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		mu.Lock()
		full := len(pages) >= c.cfg.MaxPages
		mu.Unlock()
		if full {
			r.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}

		text, err := ingest.ExtractHTML(r.Body)
		if err != nil || text == "" {
			return
		}

		title := pageTitle(r.Body)

		mu.Lock()
		defer mu.Unlock()
		if len(pages) >= c.cfg.MaxPages {
			return
		}
		pages = append(pages, Page{
			URL:   r.Request.URL.String(),
			Title: title,
			Text:  text,
		})
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Attr("href")
		if link == "" || strings.HasPrefix(link, "#") || strings.HasPrefix(link, "mailto:") {
			return
		}
		e.Request.Visit(e.Request.AbsoluteURL(link))
	})

	collector.OnError(func(r *colly.Response, err error) {
		lastErr = err
	})

	if err := collector.Visit(startURL); err != nil {
		return nil, fmt.Errorf("failed to start crawl of %s: %w", startURL, err)
	}
	collector.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(pages) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("crawl of %s yielded no pages: %w", startURL, lastErr)
		}
		return nil, fmt.Errorf("crawl of %s yielded no pages", startURL)
	}

	return pages, nil
}

// CombineText merges crawled pages into one document for chunking,
// labeling each page with its title and URL.
func CombineText(pages []Page) string {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if p.Title != "" {
			sb.WriteString(p.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(p.URL)
		sb.WriteString("\n")
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
