package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

const (
	defaultSourcesLimit = 10
	reportMaxTokens     = 1500
	reportHeading       = "WEEKLY INTELLIGENCE REPORT"
	sourcesHeading      = "SOURCE ARTICLES & KEY INSIGHTS:"
)

// Composer renders report text. The sources section is always built locally.
type Composer struct {
	generator    ports.Generator
	sourcesLimit int
	logger       *slog.Logger
}

// NewComposer wires an optional generator; sourcesLimit caps the sources section.
func NewComposer(generator ports.Generator, sourcesLimit int, logger *slog.Logger) *Composer {
	if sourcesLimit <= 0 {
		sourcesLimit = defaultSourcesLimit
	}
	return &Composer{
		generator:    generator,
		sourcesLimit: sourcesLimit,
		logger:       orDiscard(logger),
	}
}

// Compose returns the report text for a ranked run. It never fails: generation
// errors switch to the template body.
func (c *Composer) Compose(ctx context.Context, state RunState) string {
	top := GetTop(state.RankedRecords, c.sourcesLimit)

	body, ok := c.generatedBody(ctx, state.Summary)
	if !ok {
		body = FallbackBody(state.Summary, top)
	}

	var b strings.Builder
	b.WriteString(reportHeader(state.Summary))
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(SourcesSection(top))
	return b.String()
}

func (c *Composer) generatedBody(ctx context.Context, summary domain.Summary) (string, bool) {
	if c.generator == nil || !summary.Generated {
		return "", false
	}
	text, err := c.generator.ComposeReport(ctx, composePrompt(summary), ports.GenerationParams{
		MaxTokens:   reportMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Warn("report generation failed, using template", "error", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.logger.Warn("report generation returned empty text, using template")
		return "", false
	}
	return text, true
}

// ReportTitle names a report by its topics and end date.
func ReportTitle(summary domain.Summary) string {
	topics := strings.Join(summary.Topics, ", ")
	if topics == "" {
		topics = "General"
	}
	return fmt.Sprintf("Weekly Intelligence Report: %s (%s)", topics, summary.Period.End.Format("2006-01-02"))
}

func reportHeader(summary domain.Summary) string {
	var b strings.Builder
	b.WriteString(reportHeading + "\n")
	b.WriteString(strings.Repeat("=", len(reportHeading)) + "\n")
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(summary.Topics, ", "))
	fmt.Fprintf(&b, "Period: %s to %s\n",
		summary.Period.Start.Format("2006-01-02"), summary.Period.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "Generated: %s\n\n", summary.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	return b.String()
}

// FallbackBody renders executive summary, trends, insights and category notes from the summary alone.
func FallbackBody(summary domain.Summary, top []domain.Record) string {
	var b strings.Builder

	b.WriteString("EXECUTIVE SUMMARY\n")
	fmt.Fprintf(&b, "This report analyzes %d articles covering %s.", summary.ArticleCount, topicPhrase(summary.Topics))
	if len(top) > 0 {
		fmt.Fprintf(&b, " The highest-ranked item is %q from %s.", top[0].Title, top[0].SourceName)
	}
	b.WriteString("\n\n")

	b.WriteString("KEY TRENDS\n")
	writeBullets(&b, summary.Trends, "No dominant trends identified")
	b.WriteString("\n")

	b.WriteString("STRATEGIC INSIGHTS\n")
	writeBullets(&b, summary.Insights, "No strategic insights identified")

	if len(summary.Groups) > 0 {
		b.WriteString("\nCATEGORY HIGHLIGHTS\n")
		for _, g := range summary.Groups {
			fmt.Fprintf(&b, "• %s: %s\n", g.Group, g.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// SourcesSection lists every record with its extracted summary and key quote.
func SourcesSection(records []domain.Record) string {
	var b strings.Builder
	b.WriteString(sourcesHeading + "\n")
	if len(records) == 0 {
		b.WriteString("\nNo articles ranked for this period.\n")
		return b.String()
	}

	for i, rec := range records {
		author := rec.Author
		if author == "" {
			author = "Unknown author"
		}
		published := "unknown"
		if !rec.PublishedAt.IsZero() {
			published = rec.PublishedAt.UTC().Format("2006-01-02")
		}

		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, rec.Title)
		fmt.Fprintf(&b, "Source: %s | %s | Published: %s\n", rec.SourceName, author, published)
		fmt.Fprintf(&b, "Engagement: %d points, %d comments | Quality Score: %.2f/1.0\n",
			rec.EngagementScore, rec.CommentCount, rec.QualityScore)
		if rec.URL != "" {
			fmt.Fprintf(&b, "URL: %s\n", rec.URL)
		}
		fmt.Fprintf(&b, "Summary: %s\n", ExtractSummary(rec.Title, rec.Content))
		fmt.Fprintf(&b, "Key Quote: %q\n", ExtractKeyQuote(rec.Title, rec.Content))
		b.WriteString("---\n")
	}
	return b.String()
}

func composePrompt(summary domain.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive intelligence report about %s.\n", topicPhrase(summary.Topics))
	fmt.Fprintf(&b, "Articles analyzed: %d\n\n", summary.ArticleCount)
	b.WriteString("Category summaries:\n")
	for _, g := range summary.Groups {
		fmt.Fprintf(&b, "- %s (%d): %s\n", g.Group, g.Count, g.Text)
	}
	b.WriteString("\nTrends:\n")
	for _, t := range summary.Trends {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString("\nInsights:\n")
	for _, i := range summary.Insights {
		fmt.Fprintf(&b, "- %s\n", i)
	}
	b.WriteString("\nUse the sections EXECUTIVE SUMMARY, KEY TRENDS and STRATEGIC INSIGHTS. Do not list sources.")
	return b.String()
}

func topicPhrase(topics []string) string {
	if len(topics) == 0 {
		return "general technology"
	}
	return strings.Join(topics, ", ")
}

func writeBullets(b *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "• %s\n", empty)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "• %s\n", item)
	}
}
