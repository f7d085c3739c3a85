package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/metrics"
	"WeeklyIntel/internal/ports"
)

// Stage names one state of the run state machine.
type Stage string

const (
	StageIngest    Stage = "ingest"
	StageEnrich    Stage = "enrich"
	StageRank      Stage = "rank"
	StageSummarize Stage = "summarize"
	StageCompose   Stage = "compose"
	StageDeliver   Stage = "deliver"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further transitions exist.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Metadata keys written into RunState.
const (
	MetaRunID         = "run_id"
	MetaRawCount      = "raw_count"
	MetaIngestedCount = "ingested_count"
	MetaFetchFailures = "fetch_failures"
	MetaEnrichedCount = "enriched_count"
	MetaRankedCount   = "ranked_count"
	MetaReportID      = "report_id"
	MetaRecordIDs     = "record_ids"
	MetaDelivered     = "delivered"
)

var (
	// ErrNoTopics rejects a run without topics.
	ErrNoTopics = errors.New("run requires at least one topic")
	// ErrDuplicateTopic rejects a run naming the same topic twice.
	ErrDuplicateTopic = errors.New("duplicate topic name")
)

// RunState is the value threaded through the state machine. Stages return a
// new value and never mutate the one they received.
type RunState struct {
	ID              string
	Topics          []domain.Topic
	WindowDays      int
	Stage           Stage
	RawRecords      []domain.Record
	EnrichedRecords []domain.Record
	RankedRecords   []domain.Record
	Summary         domain.Summary
	ReportText      string
	Metadata        map[string]any
	FailureReason   error
	StartedAt       time.Time
}

// WithMeta returns a copy of s with key set; the receiver's map is left untouched.
func (s RunState) WithMeta(key string, value any) RunState {
	meta := make(map[string]any, len(s.Metadata)+1)
	maps.Copy(meta, s.Metadata)
	meta[key] = value
	s.Metadata = meta
	return s
}

// ReportID returns the stored report id once delivered.
func (s RunState) ReportID() string {
	id, _ := s.Metadata[MetaReportID].(string)
	return id
}

// Fetcher runs the ingest fan-out.
type Fetcher interface {
	FetchAll(ctx context.Context, topics []domain.Topic, windowDays int) (FetchResult, error)
}

// RecordEnricher fills derived fields of a batch.
type RecordEnricher interface {
	EnrichAll(ctx context.Context, records []domain.Record) []domain.Record
}

// RecordRanker scores and sorts a batch.
type RecordRanker interface {
	Rank(ctx context.Context, records []domain.Record, topics []domain.Topic) []domain.Record
}

// SummaryBuilder derives the run summary.
type SummaryBuilder interface {
	Summarize(ctx context.Context, ranked []domain.Record, topics []domain.Topic, windowDays int) domain.Summary
}

// ReportComposer renders the report text.
type ReportComposer interface {
	Compose(ctx context.Context, state RunState) string
}

// PipelineDeps wires all stage components and driven adapters into the state machine.
type PipelineDeps struct {
	Fetcher    Fetcher
	Enricher   RecordEnricher
	Ranker     RecordRanker
	Summarizer SummaryBuilder
	Composer   ReportComposer
	Repository ports.Repository
	Notifier   ports.Notifier
	RunTimeout time.Duration
	Logger     *slog.Logger
}

type stageFunc func(ctx context.Context, state RunState) (RunState, Stage, error)

// Pipeline drives Ingest → Enrich → Rank → Summarize → Compose → Deliver → Done.
type Pipeline struct {
	fetcher    Fetcher
	enricher   RecordEnricher
	ranker     RecordRanker
	summarizer SummaryBuilder
	composer   ReportComposer
	repository ports.Repository
	notifier   ports.Notifier
	runTimeout time.Duration
	logger     *slog.Logger
	handlers   map[Stage]stageFunc
}

// NewPipeline constructs the orchestration component. Missing enrich, rank,
// summarize and compose components get generation-free defaults.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := orDiscard(deps.Logger)
	p := &Pipeline{
		fetcher:    deps.Fetcher,
		enricher:   deps.Enricher,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		composer:   deps.Composer,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		runTimeout: deps.RunTimeout,
		logger:     logger,
	}
	if p.enricher == nil {
		p.enricher = NewEnricher(nil, EnricherConfig{}, logger)
	}
	if p.ranker == nil {
		p.ranker = NewRanker(nil, logger)
	}
	if p.summarizer == nil {
		p.summarizer = NewSummarizer(nil, logger)
	}
	if p.composer == nil {
		p.composer = NewComposer(nil, 0, logger)
	}

	p.handlers = map[Stage]stageFunc{
		StageIngest:    p.ingest,
		StageEnrich:    p.enrich,
		StageRank:      p.rank,
		StageSummarize: p.summarize,
		StageCompose:   p.compose,
		StageDeliver:   p.deliver,
	}
	return p
}

// Run executes one workflow for topics. The returned state is always populated;
// on domain.ErrPersistence it still carries the composed ReportText.
func (p *Pipeline) Run(ctx context.Context, topics []domain.Topic, windowDays int) (RunState, error) {
	if len(topics) == 0 {
		return RunState{Stage: StageFailed, FailureReason: ErrNoTopics}, ErrNoTopics
	}
	if err := checkUniqueTopics(topics); err != nil {
		return RunState{Stage: StageFailed, FailureReason: err}, err
	}

	id := uuid.NewString()
	state := RunState{
		ID:         id,
		Topics:     append([]domain.Topic(nil), topics...),
		WindowDays: windowDays,
		Stage:      StageIngest,
		Metadata:   map[string]any{MetaRunID: id},
		StartedAt:  time.Now().UTC(),
	}
	logger := p.logger.With("run_id", id)
	logger.Info("run started", "topics", domain.TopicNames(topics), "window_days", windowDays)

	var runErr error
	for !state.Stage.Terminal() {
		current := state.Stage
		handler, ok := p.handlers[current]
		if !ok {
			return state, fmt.Errorf("no handler for stage %s", current)
		}

		started := time.Now()
		next, nextStage, err := handler(ctx, state)
		metrics.StageDuration.WithLabelValues(string(current)).Observe(time.Since(started).Seconds())

		if err != nil {
			runErr = err
			logger.Warn("stage finished with error", "stage", current, "next", nextStage, "error", err)
		} else {
			logger.Debug("stage complete", "stage", current, "next", nextStage)
		}

		next.Stage = nextStage
		state = next
	}

	outcome := "success"
	switch {
	case state.Stage == StageFailed:
		outcome = "failed"
	case runErr != nil:
		outcome = "persistence_error"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	logger.Info("run finished", "stage", state.Stage, "outcome", outcome, "elapsed", time.Since(state.StartedAt))

	return state, runErr
}

func (p *Pipeline) ingest(ctx context.Context, state RunState) (RunState, Stage, error) {
	if p.fetcher == nil {
		state.FailureReason = domain.ErrNoArticles
		return state, StageFailed, domain.ErrNoArticles
	}

	fetchCtx := ctx
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	result, err := p.fetcher.FetchAll(fetchCtx, state.Topics, state.WindowDays)
	state = state.WithMeta(MetaFetchFailures, len(result.Failures))
	if err != nil {
		if !errors.Is(err, domain.ErrNoArticles) {
			err = fmt.Errorf("%w: %w", domain.ErrNoArticles, err)
		}
		state.FailureReason = err
		return state, StageFailed, err
	}

	deduped := Dedupe(result.Records)
	state.RawRecords = deduped
	state = state.WithMeta(MetaRawCount, len(result.Records))
	state = state.WithMeta(MetaIngestedCount, len(deduped))
	return state, StageEnrich, nil
}

func (p *Pipeline) enrich(ctx context.Context, state RunState) (RunState, Stage, error) {
	state.EnrichedRecords = p.enricher.EnrichAll(ctx, state.RawRecords)
	state = state.WithMeta(MetaEnrichedCount, len(state.EnrichedRecords))
	return state, StageRank, nil
}

func (p *Pipeline) rank(ctx context.Context, state RunState) (RunState, Stage, error) {
	state.RankedRecords = p.ranker.Rank(ctx, state.EnrichedRecords, state.Topics)
	state = state.WithMeta(MetaRankedCount, len(state.RankedRecords))
	return state, StageSummarize, nil
}

func (p *Pipeline) summarize(ctx context.Context, state RunState) (RunState, Stage, error) {
	state.Summary = p.summarizer.Summarize(ctx, state.RankedRecords, state.Topics, state.WindowDays)
	return state, StageCompose, nil
}

func (p *Pipeline) compose(ctx context.Context, state RunState) (RunState, Stage, error) {
	state.ReportText = p.composer.Compose(ctx, state)
	return state, StageDeliver, nil
}

func (p *Pipeline) deliver(ctx context.Context, state RunState) (RunState, Stage, error) {
	var persistErr error

	if p.repository != nil {
		var errs []error
		ids, err := p.repository.StoreRecords(ctx, state.RankedRecords)
		if err != nil {
			errs = append(errs, fmt.Errorf("store records: %w", err))
		} else {
			state = state.WithMeta(MetaRecordIDs, ids)
		}

		reportID, err := p.repository.StoreReport(ctx, state.ReportText, reportMeta(state))
		if err != nil {
			errs = append(errs, fmt.Errorf("store report: %w", err))
		} else {
			state = state.WithMeta(MetaReportID, reportID)
		}

		if len(errs) > 0 {
			persistErr = fmt.Errorf("%w: %w", domain.ErrPersistence, errors.Join(errs...))
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, state.ReportText); err != nil {
			p.logger.Warn("report notification failed", "run_id", state.ID, "error", err)
		} else {
			state = state.WithMeta(MetaDelivered, true)
		}
	}

	return state, StageDone, persistErr
}

// checkUniqueTopics compares names case-insensitively after trimming.
func checkUniqueTopics(topics []domain.Topic) error {
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateTopic, t.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func reportMeta(state RunState) domain.ReportMeta {
	extra := map[string]any{}
	for _, key := range []string{MetaRawCount, MetaIngestedCount, MetaFetchFailures, MetaEnrichedCount, MetaRankedCount} {
		if v, ok := state.Metadata[key]; ok {
			extra[key] = v
		}
	}
	extra["generated"] = state.Summary.Generated

	return domain.ReportMeta{
		RunID:        state.ID,
		Title:        ReportTitle(state.Summary),
		Topics:       domain.TopicNames(state.Topics),
		Period:       state.Summary.Period,
		ArticleCount: len(state.RankedRecords),
		Trends:       state.Summary.Trends,
		Insights:     state.Summary.Insights,
		Extra:        extra,
	}
}
