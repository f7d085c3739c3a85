package parser

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// RSSFeed reads a generic RSS 2.0 feed and keeps items that mention the topic.
type RSSFeed struct {
	name   string
	url    string
	client *http.Client
	now    func() time.Time
}

var _ ports.Source = (*RSSFeed)(nil)

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Encoded     string   `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Creator     string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Author      string   `xml:"author"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
	GUID        string   `xml:"guid"`
}

// NewRSSFeed builds the connector for one feed url.
func NewRSSFeed(name, feedURL string, client *http.Client) *RSSFeed {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RSSFeed{
		name:   name,
		url:    feedURL,
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Name identifies the source inside the registry.
func (r *RSSFeed) Name() string {
	return r.name
}

// Fetch downloads the feed and returns topic-matching items published within windowDays.
func (r *RSSFeed) Fetch(ctx context.Context, topic string, windowDays int) ([]domain.Record, error) {
	if r.url == "" {
		return nil, fmt.Errorf("feed url is not configured for %s", r.name)
	}
	cutoff := windowStart(r.now(), windowDays)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	matcher := newTopicMatcher(topic)
	records := make([]domain.Record, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		content := strings.TrimSpace(item.Encoded)
		if content == "" {
			content = strings.TrimSpace(item.Description)
		}
		if !matcher.Match(title + " " + content + " " + strings.Join(item.Categories, " ")) {
			continue
		}

		publishedAt := parseRSSDate(item.PubDate)
		if !publishedAt.IsZero() && publishedAt.Before(cutoff) {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = strings.TrimSpace(item.GUID)
		}

		author := strings.TrimSpace(item.Creator)
		if author == "" {
			author = strings.TrimSpace(item.Author)
		}

		records = append(records, domain.Record{
			Title:       title,
			Content:     content,
			URL:         link,
			Author:      author,
			SourceName:  r.name,
			PublishedAt: publishedAt,
			Tags:        item.Categories,
		})
	}

	return records, nil
}

func parseRSSDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
