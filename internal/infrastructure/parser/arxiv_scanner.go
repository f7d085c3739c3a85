package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"WeeklyIntel/internal/config"
	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

const (
	arxivBaseURL     = "https://arxiv.org"
	arxivDefaultPage = 200
	userAgent        = "WeeklyIntel/1.0"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner crawls category listing pages and keeps entries inside the window that mention the topic.
type ArxivScanner struct {
	name       string
	client     *http.Client
	categories []config.CategoryConfig
	pageSize   int
	now        func() time.Time
}

var _ ports.Source = (*ArxivScanner)(nil)

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(name string, client *http.Client, categories []config.CategoryConfig) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if name == "" {
		name = "arxiv"
	}
	return &ArxivScanner{
		name:       name,
		client:     client,
		categories: categories,
		pageSize:   arxivDefaultPage,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Name identifies the source inside the registry.
func (a *ArxivScanner) Name() string {
	return a.name
}

// Fetch walks through each category URL and returns entries published within windowDays that match topic.
func (a *ArxivScanner) Fetch(ctx context.Context, topic string, windowDays int) ([]domain.Record, error) {
	if len(a.categories) == 0 {
		return nil, fmt.Errorf("no categories configured for %s", a.name)
	}

	cutoff := windowStart(a.now(), windowDays).Truncate(24 * time.Hour)
	results := make([]domain.Record, 0)
	seen := map[string]struct{}{}
	matcher := newTopicMatcher(topic)

	for _, cat := range a.categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			pageRecords, shouldContinue := a.extractRecords(doc, cutoff, cat.Name)
			for _, rec := range pageRecords {
				if _, ok := seen[rec.URL]; ok {
					continue
				}
				if !matcher.Match(rec.Title + " " + rec.Content) {
					continue
				}
				seen[rec.URL] = struct{}{}
				results = append(results, rec)
			}

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractRecords(doc *goquery.Document, cutoff time.Time, category string) ([]domain.Record, bool) {
	var (
		collected    []domain.Record
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		rec, err := parseEntry(dt, dd, a.name, category)
		if err != nil {
			return true
		}

		day := rec.PublishedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(cutoff) {
			continueScan = false
			return false
		}
		collected = append(collected, rec)
		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection, sourceName, category string) (domain.Record, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.Record{}, fmt.Errorf("entry without abstract link")
	}

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = "arXiv:" + strings.TrimPrefix(href, "/abs/")
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	var publishedAt time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed.UTC()
		}
	}
	if publishedAt.IsZero() {
		return domain.Record{}, fmt.Errorf("entry %s without date", id)
	}

	return domain.Record{
		Title:       title,
		Content:     abstract,
		URL:         href,
		Author:      strings.Join(authors, ", "),
		SourceName:  sourceName,
		PublishedAt: publishedAt,
		Tags:        []string{category},
		Metadata: map[string]any{
			"arxiv_id": id,
			"category": category,
		},
	}, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
