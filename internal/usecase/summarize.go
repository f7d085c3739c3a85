package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

const (
	summaryInputLimit   = 50
	trendSampleSize     = 15
	insightSampleSize   = 10
	maxTrends           = 5
	maxInsights         = 5
	groupSampleSize     = 5
	groupContentPreview = 300
	insightTextPreview  = 200
	insightScoreFloor   = 0.5
)

var groupOrder = []string{"announcement", "funding", "research", "tutorial", "general"}

var (
	techKeywords     = []string{"ai", "ml", "api", "framework", "tool", "library", "platform", "developer", "code"}
	businessKeywords = []string{"funding", "launch", "acquisition", "partnership", "startup", "company"}
)

// Summarizer derives trends, insights and per-group prose from ranked records.
type Summarizer struct {
	generator ports.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// NewSummarizer wires an optional generator; nil means generation is unavailable.
func NewSummarizer(generator ports.Generator, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    orDiscard(logger),
	}
}

// Summarize builds the run summary. Generation failures fall back to deterministic group text.
func (s *Summarizer) Summarize(ctx context.Context, ranked []domain.Record, topics []domain.Topic, windowDays int) domain.Summary {
	names := domain.TopicNames(topics)
	top := GetTop(ranked, summaryInputLimit)
	now := s.now()

	summary := domain.Summary{
		Topics:       names,
		Period:       periodFor(now, windowDays),
		ArticleCount: len(ranked),
		TopURLs:      topURLs(top, 10),
		Trends:       ExtractTrends(top, names),
		Insights:     GenerateInsights(top, names),
		GeneratedAt:  now,
	}

	groups := groupRecords(top)
	if s.generator == nil {
		s.logger.Info("generator not configured, using fallback summary")
		summary.Groups = fallbackGroups(groups)
		return summary
	}

	generated, err := s.generateGroups(ctx, groups)
	if err != nil {
		s.logger.Warn("group summarization failed, using fallback summary", "error", err)
		summary.Groups = fallbackGroups(groups)
		return summary
	}

	summary.Groups = generated
	summary.Generated = true
	return summary
}

func (s *Summarizer) generateGroups(ctx context.Context, groups map[string][]domain.Record) ([]domain.GroupSummary, error) {
	out := make([]domain.GroupSummary, 0, len(groups))
	for _, name := range groupOrder {
		records := groups[name]
		if len(records) == 0 {
			continue
		}
		text, err := s.generator.SummarizeGroup(ctx, groupPrompt(name, records), ports.GenerationParams{
			MaxTokens: 200,
			Group:     name,
		})
		if err != nil {
			return nil, fmt.Errorf("summarize group %s: %w", name, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("summarize group %s: empty output: %w", name, domain.ErrGenerationUnavailable)
		}
		out = append(out, domain.GroupSummary{Group: name, Text: text, Count: len(records)})
	}
	return out, nil
}

// ExtractTrends phrases the dominant content type, source and topic mentions among the top records.
func ExtractTrends(records []domain.Record, topics []string) []string {
	sample := records
	if len(sample) > trendSampleSize {
		sample = sample[:trendSampleSize]
	}

	types := newCounter()
	sources := newCounter()
	topicHits := map[string]int{}
	for _, rec := range sample {
		contentType := string(rec.ContentType)
		if contentType == "" {
			contentType = string(domain.ContentGeneral)
		}
		types.add(contentType)
		sourceName := rec.SourceName
		if sourceName == "" {
			sourceName = "unknown"
		}
		sources.add(sourceName)

		title := strings.ToLower(rec.Title)
		for _, topic := range topics {
			if strings.Contains(title, strings.ToLower(topic)) {
				topicHits[topic]++
			}
		}
	}

	var trends []string
	if top, ok := types.top(); ok {
		trends = append(trends, fmt.Sprintf("Increased activity in %s content", top))
	}
	if top, ok := sources.top(); ok {
		trends = append(trends, fmt.Sprintf("High engagement from %s discussions", top))
	}
	for _, topic := range topics {
		if topicHits[topic] > 2 {
			trends = append(trends, fmt.Sprintf("Growing interest in %s", topic))
		}
	}
	trends = append(trends, fmt.Sprintf("Analysis of %d articles from %d sources", len(records), sources.len()))

	if len(trends) > maxTrends {
		trends = trends[:maxTrends]
	}
	return trends
}

// GenerateInsights contrasts technical and business signals among the strongest records.
func GenerateInsights(records []domain.Record, topics []string) []string {
	var sample []domain.Record
	for _, rec := range records {
		if rec.RankingScore > insightScoreFloor {
			sample = append(sample, rec)
			if len(sample) == insightSampleSize {
				break
			}
		}
	}
	if len(sample) == 0 {
		sample = GetTop(records, insightSampleSize)
	}

	texts := make([]string, len(sample))
	techCount, businessCount := 0, 0
	for i, rec := range sample {
		texts[i] = strings.ToLower(rec.Title + " " + truncateRunes(rec.Content, insightTextPreview))
		if containsAny(texts[i], techKeywords) {
			techCount++
		}
		if containsAny(texts[i], businessKeywords) {
			businessCount++
		}
	}

	var insights []string
	switch {
	case techCount > businessCount:
		insights = append(insights,
			"Strong focus on technical innovation and developer tools",
			"Technology trends indicate continued emphasis on AI and ML integration",
		)
	case businessCount > techCount:
		insights = append(insights,
			"Business development and funding activities are prominent",
			"Market shows active investment and partnership opportunities",
		)
	default:
		insights = append(insights, "Balanced mix of technical and business developments")
	}

	for _, topic := range topics {
		needle := strings.ToLower(topic)
		n := 0
		for _, text := range texts {
			if strings.Contains(text, needle) {
				n++
			}
		}
		if n > 0 {
			insights = append(insights, fmt.Sprintf("%s remains a key area of interest with %d relevant developments", topic, n))
		}
	}
	insights = append(insights, fmt.Sprintf("Analyzed %d articles to identify strategic opportunities", len(records)))

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

func groupRecords(records []domain.Record) map[string][]domain.Record {
	groups := make(map[string][]domain.Record, len(groupOrder))
	for _, rec := range records {
		name := string(rec.ContentType)
		switch rec.ContentType {
		case domain.ContentAnnouncement, domain.ContentFunding, domain.ContentResearch, domain.ContentTutorial:
		default:
			name = string(domain.ContentGeneral)
		}
		groups[name] = append(groups[name], rec)
	}
	return groups
}

func fallbackGroups(groups map[string][]domain.Record) []domain.GroupSummary {
	out := make([]domain.GroupSummary, 0, len(groups))
	for _, name := range groupOrder {
		n := len(groups[name])
		if n == 0 {
			continue
		}
		out = append(out, domain.GroupSummary{
			Group: name,
			Text:  fmt.Sprintf("Articles in %s category: %d articles processed", name, n),
			Count: n,
		})
	}
	return out
}

func groupPrompt(group string, records []domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize these %s articles:\n\n", group)
	for _, rec := range GetTop(records, groupSampleSize) {
		fmt.Fprintf(&b, "Title: %s\nSource: %s\nContent: %s...\n\n",
			rec.Title, rec.SourceName, truncateRunes(rec.Content, groupContentPreview))
	}
	return b.String()
}

func periodFor(now time.Time, windowDays int) domain.Period {
	if windowDays <= 0 {
		windowDays = 7
	}
	return domain.Period{Start: now.AddDate(0, 0, -windowDays), End: now}
}

func topURLs(records []domain.Record, n int) []string {
	out := make([]string, 0, n)
	for _, rec := range GetTop(records, n) {
		out = append(out, rec.URL)
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// counter tallies labels and reports the first label reaching the highest count.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(label string) {
	if _, ok := c.counts[label]; !ok {
		c.order = append(c.order, label)
	}
	c.counts[label]++
}

func (c *counter) top() (string, bool) {
	best, bestN := "", 0
	for _, label := range c.order {
		if c.counts[label] > bestN {
			best, bestN = label, c.counts[label]
		}
	}
	return best, bestN > 0
}

func (c *counter) len() int {
	return len(c.order)
}
