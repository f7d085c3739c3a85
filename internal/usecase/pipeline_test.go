package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"WeeklyIntel/internal/domain"
)

type pipelineHarness struct {
	pipeline   *Pipeline
	enricher   *countingEnricher
	ranker     *countingRanker
	summarizer *countingSummarizer
	composer   *countingComposer
	repo       *fakeRepository
	notifier   *fakeNotifier
}

func newHarness(sources []*fakeSource, gen *fakeGenerator) *pipelineHarness {
	h := &pipelineHarness{
		enricher:   &countingEnricher{inner: NewEnricher(nil, EnricherConfig{}, nil)},
		ranker:     &countingRanker{inner: NewRanker(nil, nil).WithClock(fixedClock)},
		summarizer: &countingSummarizer{inner: NewSummarizer(nil, nil)},
		composer:   &countingComposer{inner: NewComposer(nil, 10, nil)},
		repo:       &fakeRepository{},
		notifier:   &fakeNotifier{},
	}
	if gen != nil {
		h.summarizer.inner = NewSummarizer(gen, nil)
		h.composer.inner = NewComposer(gen, 10, nil)
	}
	h.pipeline = NewPipeline(PipelineDeps{
		Fetcher:    NewCoordinator(sourcesOf(sources...), 0, nil),
		Enricher:   h.enricher,
		Ranker:     h.ranker,
		Summarizer: h.summarizer,
		Composer:   h.composer,
		Repository: h.repo,
		Notifier:   h.notifier,
	})
	return h
}

func TestPipelineRunReachesDone(t *testing.T) {
	t.Parallel()

	base := rankNow.Add(-24 * time.Hour)
	h := newHarness([]*fakeSource{
		{name: "alpha", records: makeRecords("alpha", 5, base)},
		{name: "broken", err: errUpstream},
		{name: "gamma", records: append(makeRecords("gamma", 2, base), makeRecords("alpha", 1, base)...)},
	}, nil)

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Stage != StageDone {
		t.Fatalf("expected done, got %s", state.Stage)
	}
	if state.ID == "" || state.Metadata[MetaRunID] != state.ID {
		t.Fatalf("run id not recorded: %+v", state.Metadata)
	}
	if state.Metadata[MetaRawCount] != 8 || state.Metadata[MetaIngestedCount] != 7 {
		t.Fatalf("unexpected counts: %+v", state.Metadata)
	}
	if len(state.RawRecords) != 7 || len(state.EnrichedRecords) != 7 || len(state.RankedRecords) != 7 {
		t.Fatalf("unexpected stage outputs: %d/%d/%d", len(state.RawRecords), len(state.EnrichedRecords), len(state.RankedRecords))
	}
	if !strings.Contains(state.ReportText, sourcesHeading) {
		t.Fatalf("report missing sources section")
	}
	if state.ReportID() != "report-1" {
		t.Fatalf("expected report id in metadata, got %q", state.ReportID())
	}
	if len(h.repo.records) != 7 || len(h.repo.reports) != 1 {
		t.Fatalf("expected records and report stored")
	}
	meta := h.repo.metas[0]
	if meta.RunID != state.ID || meta.ArticleCount != 7 || meta.Title == "" {
		t.Fatalf("unexpected report meta: %+v", meta)
	}
	if len(h.notifier.messages) != 1 || h.notifier.messages[0] != state.ReportText {
		t.Fatalf("expected report published once")
	}
	if h.enricher.calls != 1 || h.ranker.calls != 1 || h.summarizer.calls != 1 || h.composer.calls != 1 {
		t.Fatalf("each stage should run exactly once")
	}
}

func TestPipelineAllSourcesFail(t *testing.T) {
	t.Parallel()

	h := newHarness([]*fakeSource{
		{name: "a", err: errUpstream},
		{name: "b", err: errUpstream},
		{name: "c", err: errUpstream},
	}, nil)

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	if state.Stage != StageFailed || !errors.Is(state.FailureReason, domain.ErrNoArticles) {
		t.Fatalf("expected failed state, got %s (%v)", state.Stage, state.FailureReason)
	}
	if h.enricher.calls != 0 || h.ranker.calls != 0 || h.summarizer.calls != 0 || h.composer.calls != 0 {
		t.Fatalf("later stages invoked: enrich=%d rank=%d summarize=%d compose=%d",
			h.enricher.calls, h.ranker.calls, h.summarizer.calls, h.composer.calls)
	}
	if len(h.repo.reports) != 0 || len(h.notifier.messages) != 0 {
		t.Fatalf("no report should be delivered")
	}
	if state.ReportText != "" {
		t.Fatalf("no report text expected")
	}
}

func TestPipelineGeneratorUnavailable(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{groupErr: domain.ErrGenerationUnavailable, reportErr: domain.ErrGenerationUnavailable}
	h := newHarness([]*fakeSource{{name: "alpha", records: makeRecords("alpha", 4, rankNow)}}, gen)

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Stage != StageDone || state.Summary.Generated {
		t.Fatalf("expected fallback run to reach done")
	}
	sources := state.ReportText[strings.Index(state.ReportText, sourcesHeading):]
	for _, rec := range state.RankedRecords {
		if !strings.Contains(sources, rec.Title) {
			t.Fatalf("sources section missing %q", rec.Title)
		}
	}
	if !strings.Contains(sources, "Summary: ") {
		t.Fatalf("expected extracted summaries")
	}
}

func TestPipelinePersistenceFailureKeepsReport(t *testing.T) {
	t.Parallel()

	h := newHarness([]*fakeSource{{name: "alpha", records: makeRecords("alpha", 2, rankNow)}}, nil)
	h.repo.reportErr = errors.New("disk full")

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if state.Stage != StageDone || state.ReportText == "" {
		t.Fatalf("expected completed state with report text")
	}
	if state.ReportID() != "" {
		t.Fatalf("report id must not be set on failure")
	}
	if len(h.notifier.messages) != 1 {
		t.Fatalf("report should still be published")
	}
}

func TestPipelineRecordFailureStillStoresReport(t *testing.T) {
	t.Parallel()

	h := newHarness([]*fakeSource{{name: "alpha", records: makeRecords("alpha", 2, rankNow)}}, nil)
	h.repo.recordErr = errors.New("constraint violation")

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrPersistence) || !strings.Contains(err.Error(), "store records") {
		t.Fatalf("expected record persistence error, got %v", err)
	}
	if state.ReportID() != "report-1" || len(h.repo.reports) != 1 {
		t.Fatalf("report should be stored after record failure, id=%q", state.ReportID())
	}
	if _, ok := state.Metadata[MetaRecordIDs]; ok {
		t.Fatalf("record ids must not be set on failure")
	}
}

func TestPipelineJoinsBothPersistenceErrors(t *testing.T) {
	t.Parallel()

	recordErr := errors.New("constraint violation")
	reportErr := errors.New("disk full")
	h := newHarness([]*fakeSource{{name: "alpha", records: makeRecords("alpha", 2, rankNow)}}, nil)
	h.repo.recordErr = recordErr
	h.repo.reportErr = reportErr

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, recordErr) || !errors.Is(err, reportErr) {
		t.Fatalf("expected both causes under ErrPersistence, got %v", err)
	}
	if state.Stage != StageDone || len(h.notifier.messages) != 1 {
		t.Fatalf("report should still be published")
	}
}

func TestPipelineRunTimeoutBoundsIngestOnly(t *testing.T) {
	t.Parallel()

	repo := &ctxRepository{}
	slow := &fakeSource{name: "slow", block: true}
	p := NewPipeline(PipelineDeps{
		Fetcher: NewCoordinator(sourcesOf(
			&fakeSource{name: "alpha", records: makeRecords("alpha", 3, rankNow)},
			slow,
		), 0, nil),
		Enricher:   NewEnricher(&ctxEmbedder{vector: []float32{1, 0, 0}}, EnricherConfig{Policy: PolicyDrop}, nil),
		Repository: repo,
		RunTimeout: 50 * time.Millisecond,
	})

	state, err := p.Run(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Stage != StageDone || state.Metadata[MetaIngestedCount] != 3 {
		t.Fatalf("expected done with 3 ingested, got %s / %v", state.Stage, state.Metadata)
	}
	if state.Metadata[MetaFetchFailures] != 1 || slow.calls.Load() != 1 {
		t.Fatalf("expected the blocking source to time out once, got %v", state.Metadata[MetaFetchFailures])
	}
	if len(state.EnrichedRecords) != 3 {
		t.Fatalf("enrichment ran on an expired context: %d records kept", len(state.EnrichedRecords))
	}
	if repo.stored != 3 || state.ReportID() == "" {
		t.Fatalf("delivery ran on an expired context: stored=%d report=%q", repo.stored, state.ReportID())
	}
}

func TestPipelineRejectsDuplicateTopics(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "alpha", records: makeRecords("alpha", 2, rankNow)}
	p := NewPipeline(PipelineDeps{Fetcher: NewCoordinator(sourcesOf(src), 0, nil)})

	for _, topics := range [][]domain.Topic{
		{{Name: "AI"}, {Name: "AI"}},
		{{Name: "AI"}, {Name: "robotics"}, {Name: " ai "}},
	} {
		state, err := p.Run(context.Background(), topics, 7)
		if !errors.Is(err, ErrDuplicateTopic) {
			t.Fatalf("expected ErrDuplicateTopic for %v, got %v", topics, err)
		}
		if state.Stage != StageFailed {
			t.Fatalf("expected failed stage, got %s", state.Stage)
		}
	}
	if src.calls.Load() != 0 {
		t.Fatalf("sources fetched for a rejected run")
	}
}

func TestPipelineNotifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness([]*fakeSource{{name: "alpha", records: makeRecords("alpha", 2, rankNow)}}, nil)
	h.notifier.err = errors.New("telegram down")

	state, err := h.pipeline.Run(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := state.Metadata[MetaDelivered]; ok {
		t.Fatalf("delivered flag set despite notifier failure")
	}
}

func TestPipelineZeroRankedIsNotAnError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: errUpstream}
	p := NewPipeline(PipelineDeps{
		Fetcher:  NewCoordinator(sourcesOf(&fakeSource{name: "alpha", records: makeRecords("alpha", 2, rankNow)}), 0, nil),
		Enricher: NewEnricher(emb, EnricherConfig{Policy: PolicyDrop}, nil),
	})

	state, err := p.Run(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.Stage != StageDone || len(state.RankedRecords) != 0 {
		t.Fatalf("expected done with zero ranked records, got %s/%d", state.Stage, len(state.RankedRecords))
	}
	if !strings.Contains(state.ReportText, "No articles ranked") {
		t.Fatalf("expected empty sources note")
	}
}

func TestPipelineRejectsEmptyTopics(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(PipelineDeps{}).Run(context.Background(), nil, 7)
	if !errors.Is(err, ErrNoTopics) {
		t.Fatalf("expected ErrNoTopics, got %v", err)
	}
}

func TestRunStateWithMetaCopiesOnWrite(t *testing.T) {
	t.Parallel()

	a := RunState{Metadata: map[string]any{"k": 1}}
	b := a.WithMeta("k", 2)
	if a.Metadata["k"] != 1 || b.Metadata["k"] != 2 {
		t.Fatalf("metadata shared between states")
	}
}
