package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

const (
	hackerNewsSearchURL   = "https://hn.algolia.com/api/v1/search_by_date"
	hackerNewsItemURL     = "https://news.ycombinator.com/item?id="
	hackerNewsDefaultHits = 50
)

// HackerNews queries the Algolia search API for stories about a topic.
type HackerNews struct {
	name     string
	endpoint string
	hits     int
	client   *http.Client
	now      func() time.Time
}

var _ ports.Source = (*HackerNews)(nil)

type hnResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID    string   `json:"objectID"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Author      string   `json:"author"`
	StoryText   string   `json:"story_text"`
	Points      int      `json:"points"`
	NumComments int      `json:"num_comments"`
	CreatedAtI  int64    `json:"created_at_i"`
	Tags        []string `json:"_tags"`
}

// NewHackerNews builds the connector; an empty endpoint uses the public Algolia API.
func NewHackerNews(name, endpoint string, hits int, client *http.Client) *HackerNews {
	if name == "" {
		name = "hackernews"
	}
	if endpoint == "" {
		endpoint = hackerNewsSearchURL
	}
	if hits <= 0 {
		hits = hackerNewsDefaultHits
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HackerNews{
		name:     name,
		endpoint: endpoint,
		hits:     hits,
		client:   client,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Name identifies the source inside the registry.
func (h *HackerNews) Name() string {
	return h.name
}

// Fetch returns stories matching topic created within windowDays.
func (h *HackerNews) Fetch(ctx context.Context, topic string, windowDays int) ([]domain.Record, error) {
	cutoff := windowStart(h.now(), windowDays)

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %w", h.endpoint, err)
	}
	q := u.Query()
	q.Set("query", topic)
	q.Set("tags", "story")
	q.Set("numericFilters", "created_at_i>"+strconv.FormatInt(cutoff.Unix(), 10))
	q.Set("hitsPerPage", strconv.Itoa(h.hits))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hackernews returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload hnResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]domain.Record, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		if strings.TrimSpace(hit.Title) == "" {
			continue
		}
		publishedAt := time.Unix(hit.CreatedAtI, 0).UTC()
		if hit.CreatedAtI > 0 && publishedAt.Before(cutoff) {
			continue
		}

		link := strings.TrimSpace(hit.URL)
		if link == "" {
			link = hackerNewsItemURL + hit.ObjectID
		}

		rec := domain.Record{
			Title:           strings.TrimSpace(hit.Title),
			Content:         hit.StoryText,
			URL:             link,
			Author:          hit.Author,
			SourceName:      h.name,
			EngagementScore: max(hit.Points, 0),
			CommentCount:    max(hit.NumComments, 0),
			Tags:            hit.Tags,
			Metadata: map[string]any{
				"hn_id":      hit.ObjectID,
				"discussion": hackerNewsItemURL + hit.ObjectID,
			},
		}
		if hit.CreatedAtI > 0 {
			rec.PublishedAt = publishedAt
		}
		records = append(records, rec)
	}

	return records, nil
}
