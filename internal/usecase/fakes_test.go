package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

var errUpstream = errors.New("upstream unavailable")

type fakeSource struct {
	name    string
	records []domain.Record
	err     error
	panics  bool
	block   bool
	calls   atomic.Int32
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context, topic string, windowDays int) ([]domain.Record, error) {
	s.calls.Add(1)
	if s.panics {
		panic("connector exploded")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func makeRecords(prefix string, n int, base time.Time) []domain.Record {
	out := make([]domain.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Record{
			Title:           fmt.Sprintf("%s story %d about AI tooling", prefix, i),
			Content:         fmt.Sprintf("The team announced a new AI framework for developers. Version %d ships today with many improvements.", i),
			URL:             fmt.Sprintf("https://%s.example.com/%d", prefix, i),
			Author:          "author-" + prefix,
			PublishedAt:     base.Add(-time.Duration(i) * time.Hour),
			EngagementScore: 10 * (i + 1),
			CommentCount:    i,
		})
	}
	return out
}

type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	failOn   map[string]bool
	calls    int
	texts    []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.texts = append(e.texts, text)
	if e.err != nil {
		return nil, e.err
	}
	if e.failOn[text] {
		return nil, errUpstream
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.fallback, nil
}

type fakeGenerator struct {
	groupText   string
	reportText  string
	groupErr    error
	reportErr   error
	groupCalls  int
	reportCalls int
}

func (g *fakeGenerator) SummarizeGroup(_ context.Context, _ string, params ports.GenerationParams) (string, error) {
	g.groupCalls++
	if g.groupErr != nil {
		return "", g.groupErr
	}
	return g.groupText + " (" + params.Group + ")", nil
}

func (g *fakeGenerator) ComposeReport(context.Context, string, ports.GenerationParams) (string, error) {
	g.reportCalls++
	if g.reportErr != nil {
		return "", g.reportErr
	}
	return g.reportText, nil
}

type fakeRepository struct {
	records   []domain.Record
	reports   []string
	metas     []domain.ReportMeta
	recordErr error
	reportErr error
}

func (r *fakeRepository) StoreRecords(_ context.Context, records []domain.Record) ([]string, error) {
	if r.recordErr != nil {
		return nil, r.recordErr
	}
	r.records = append(r.records, records...)
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = fmt.Sprintf("rec-%d", i)
	}
	return ids, nil
}

func (r *fakeRepository) StoreReport(_ context.Context, text string, meta domain.ReportMeta) (string, error) {
	if r.reportErr != nil {
		return "", r.reportErr
	}
	r.reports = append(r.reports, text)
	r.metas = append(r.metas, meta)
	return fmt.Sprintf("report-%d", len(r.reports)), nil
}

func (r *fakeRepository) GetRecent(context.Context, int, int) ([]domain.Record, error) {
	return r.records, nil
}

func (r *fakeRepository) GetReportByID(context.Context, string) (*domain.Report, error) {
	return nil, domain.ErrReportNotFound
}

// ctxEmbedder fails once its context is done.
type ctxEmbedder struct {
	vector []float32
}

func (e *ctxEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector, nil
}

// ctxRepository fails writes once its context is done.
type ctxRepository struct {
	fakeRepository
	stored int
}

func (r *ctxRepository) StoreRecords(ctx context.Context, records []domain.Record) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.stored += len(records)
	return r.fakeRepository.StoreRecords(ctx, records)
}

func (r *ctxRepository) StoreReport(ctx context.Context, text string, meta domain.ReportMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.fakeRepository.StoreReport(ctx, text, meta)
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, digest)
	return nil
}

type countingEnricher struct {
	inner RecordEnricher
	calls int
}

func (c *countingEnricher) EnrichAll(ctx context.Context, records []domain.Record) []domain.Record {
	c.calls++
	return c.inner.EnrichAll(ctx, records)
}

type countingRanker struct {
	inner RecordRanker
	calls int
}

func (c *countingRanker) Rank(ctx context.Context, records []domain.Record, topics []domain.Topic) []domain.Record {
	c.calls++
	return c.inner.Rank(ctx, records, topics)
}

type countingSummarizer struct {
	inner SummaryBuilder
	calls int
}

func (c *countingSummarizer) Summarize(ctx context.Context, ranked []domain.Record, topics []domain.Topic, windowDays int) domain.Summary {
	c.calls++
	return c.inner.Summarize(ctx, ranked, topics, windowDays)
}

type countingComposer struct {
	inner ReportComposer
	calls int
}

func (c *countingComposer) Compose(ctx context.Context, state RunState) string {
	c.calls++
	return c.inner.Compose(ctx, state)
}

func sourcesOf(srcs ...*fakeSource) []ports.Source {
	out := make([]ports.Source, len(srcs))
	for i, s := range srcs {
		out[i] = s
	}
	return out
}
