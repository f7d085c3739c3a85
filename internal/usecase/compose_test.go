package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"WeeklyIntel/internal/domain"
)

func composeState() RunState {
	ranked := summaryRecords()
	for i := range ranked {
		ranked[i].Content = "First line of the story is here. Second line adds detail. Third line is skipped."
		ranked[i].PublishedAt = rankNow
		ranked[i].EngagementScore = 40 + i
		ranked[i].CommentCount = i
	}
	s := NewSummarizer(nil, nil)
	s.now = func() time.Time { return rankNow }
	return RunState{
		Topics:        ai,
		RankedRecords: ranked,
		Summary:       s.Summarize(context.Background(), ranked, ai, 7),
	}
}

func TestComposeFallbackIncludesSources(t *testing.T) {
	t.Parallel()

	state := composeState()
	text := NewComposer(nil, 10, nil).Compose(context.Background(), state)

	for _, section := range []string{reportHeading, "EXECUTIVE SUMMARY", "KEY TRENDS", "STRATEGIC INSIGHTS", sourcesHeading} {
		if !strings.Contains(text, section) {
			t.Fatalf("report missing %q section:\n%s", section, text)
		}
	}
	for i, rec := range state.RankedRecords {
		if !strings.Contains(text, rec.Title) || !strings.Contains(text, rec.URL) {
			t.Fatalf("record %d missing from sources section", i)
		}
	}
	if !strings.Contains(text, "Summary: First line of the story is here. Second line adds detail.") {
		t.Fatalf("expected extracted summaries in sources section")
	}
	if !strings.Contains(text, "Engagement: 40 points, 0 comments") {
		t.Fatalf("expected engagement numbers in sources section")
	}
}

func TestComposeGeneratorUnavailableStillAuditable(t *testing.T) {
	t.Parallel()

	state := composeState()
	state.Summary.Generated = true
	gen := &fakeGenerator{reportErr: domain.ErrGenerationUnavailable}

	text := NewComposer(gen, 10, nil).Compose(context.Background(), state)
	if gen.reportCalls != 1 {
		t.Fatalf("expected one generation attempt, got %d", gen.reportCalls)
	}
	if text == "" || !strings.Contains(text, "KEY TRENDS") {
		t.Fatalf("expected fallback body")
	}
	sources := text[strings.Index(text, sourcesHeading):]
	if strings.Count(sources, "\n[") != len(state.RankedRecords) {
		t.Fatalf("expected every ranked record in sources section:\n%s", sources)
	}
}

func TestComposeGeneratedBodyKeepsDeterministicSources(t *testing.T) {
	t.Parallel()

	state := composeState()
	state.Summary.Generated = true
	gen := &fakeGenerator{reportText: "GENERATED BODY"}

	text := NewComposer(gen, 10, nil).Compose(context.Background(), state)
	if !strings.Contains(text, "GENERATED BODY") {
		t.Fatalf("expected generated body")
	}
	if strings.Contains(text, "KEY TRENDS") {
		t.Fatalf("generated body should replace template sections")
	}

	want := SourcesSection(GetTop(state.RankedRecords, 10))
	if !strings.HasSuffix(text, want) {
		t.Fatalf("sources section not appended unchanged")
	}
}

func TestComposeSkipsGeneratorForFallbackSummary(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reportText: "unused"}
	_ = NewComposer(gen, 10, nil).Compose(context.Background(), composeState())
	if gen.reportCalls != 0 {
		t.Fatalf("expected no report generation after fallback summary")
	}
}

func TestComposeLimitsSources(t *testing.T) {
	t.Parallel()

	text := NewComposer(nil, 2, nil).Compose(context.Background(), composeState())
	sources := text[strings.Index(text, sourcesHeading):]
	if strings.Count(sources, "\n[") != 2 {
		t.Fatalf("expected 2 source entries:\n%s", sources)
	}
}

func TestSourcesSectionEmpty(t *testing.T) {
	t.Parallel()

	if got := SourcesSection(nil); !strings.Contains(got, "No articles ranked") {
		t.Fatalf("unexpected empty section: %q", got)
	}
}
