package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/metrics"
	"WeeklyIntel/internal/ports"
)

// FetchFailure describes one (topic, source) branch that did not contribute records.
type FetchFailure struct {
	Source string
	Topic  string
	Err    error
}

// FetchResult is the merged outcome of one fan-out.
type FetchResult struct {
	Records  []domain.Record
	Failures []FetchFailure
}

// Coordinator fans a fetch out to every registered source for every topic.
type Coordinator struct {
	sources       []ports.Source
	sourceTimeout time.Duration
	logger        *slog.Logger
}

// NewCoordinator wires sources; sourceTimeout of zero leaves fetches bounded only by ctx.
func NewCoordinator(sources []ports.Source, sourceTimeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		sources:       sources,
		sourceTimeout: sourceTimeout,
		logger:        orDiscard(logger),
	}
}

// FetchAll returns the union of all successful per-source results.
// When no source yields any record it returns domain.ErrNoArticles alongside the failures.
func (c *Coordinator) FetchAll(ctx context.Context, topics []domain.Topic, windowDays int) (FetchResult, error) {
	type branch struct {
		topic   string
		source  ports.Source
		records []domain.Record
		err     error
	}

	branches := make([]*branch, 0, len(topics)*len(c.sources))
	for _, topic := range topics {
		for _, src := range c.sources {
			branches = append(branches, &branch{topic: topic.Name, source: src})
		}
	}

	// Branches never return an error to the group, so one failure cannot cancel its siblings.
	var g errgroup.Group
	for _, b := range branches {
		g.Go(func() error {
			b.records, b.err = c.fetchOne(ctx, b.source, b.topic, windowDays)
			return nil
		})
	}
	_ = g.Wait()

	var result FetchResult
	for _, b := range branches {
		name := b.source.Name()
		if b.err != nil {
			metrics.SourceFetchTotal.WithLabelValues(name, "error").Inc()
			c.logger.Warn("source fetch failed", "source", name, "topic", b.topic, "error", b.err)
			result.Failures = append(result.Failures, FetchFailure{Source: name, Topic: b.topic, Err: b.err})
			continue
		}

		metrics.SourceFetchTotal.WithLabelValues(name, "success").Inc()
		metrics.SourceRecordsTotal.WithLabelValues(name).Add(float64(len(b.records)))
		for _, rec := range b.records {
			rec = annotate(rec, b.topic, name)
			if !rec.Valid() {
				c.logger.Warn("record without url rejected", "source", name, "topic", b.topic, "title", rec.Title)
				continue
			}
			result.Records = append(result.Records, rec)
		}
		c.logger.Debug("source fetch complete", "source", name, "topic", b.topic, "count", len(b.records))
	}

	c.logger.Info("fan-out complete",
		"topics", len(topics),
		"sources", len(c.sources),
		"records", len(result.Records),
		"failures", len(result.Failures),
	)

	if len(result.Records) == 0 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", domain.ErrNoArticles, err)
		}
		return result, domain.ErrNoArticles
	}
	return result, nil
}

func (c *Coordinator) fetchOne(ctx context.Context, src ports.Source, topic string, windowDays int) (records []domain.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = &domain.SourceFetchError{Source: src.Name(), Topic: topic, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if c.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.sourceTimeout)
		defer cancel()
	}

	records, err = src.Fetch(ctx, topic, windowDays)
	if err != nil {
		return nil, &domain.SourceFetchError{Source: src.Name(), Topic: topic, Err: err}
	}
	return records, nil
}

func annotate(rec domain.Record, topic, source string) domain.Record {
	rec = rec.Clone()
	rec.Topic = topic
	rec.SourceName = source
	if !rec.PublishedAt.IsZero() {
		rec.PublishedAt = rec.PublishedAt.UTC()
	}
	return rec
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
