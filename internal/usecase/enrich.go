package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/metrics"
	"WeeklyIntel/internal/ports"
)

// FailurePolicy decides what happens to a record whose enrichment failed.
type FailurePolicy string

const (
	// PolicyDegrade keeps the record with neutral derived values.
	PolicyDegrade FailurePolicy = "degrade"
	// PolicyDrop removes the record from the batch.
	PolicyDrop FailurePolicy = "drop"
)

const (
	defaultMinContentLength = 50
	defaultMaxInputChars    = 10000
	neutralQuality          = 0.5
)

var defaultTrustedSources = []string{"hackernews", "reddit", "producthunt"}

type contentRule struct {
	kind     domain.ContentType
	triggers []string
	urlOnly  bool
}

// Order matters: the first matching rule wins.
var contentRules = []contentRule{
	{kind: domain.ContentAnnouncement, triggers: []string{"launch", "announce", "release"}},
	{kind: domain.ContentFunding, triggers: []string{"funding", "raised", "investment"}},
	{kind: domain.ContentTutorial, triggers: []string{"tutorial", "how to", "guide"}},
	{kind: domain.ContentCode, triggers: []string{"github.com"}, urlOnly: true},
	{kind: domain.ContentResearch, triggers: []string{"research", "study", "paper"}},
}

// EnricherConfig tunes derived-field computation.
type EnricherConfig struct {
	MinContentLength int
	MaxInputChars    int
	Dimensions       int
	TrustedSources   []string
	Policy           FailurePolicy
}

// Enricher derives keywords, content type, quality and embedding for records.
// The embedder handle is shared read-only; everything else is per call.
type Enricher struct {
	embedder ports.Embedder
	cfg      EnricherConfig
	trusted  map[string]struct{}
	logger   *slog.Logger
}

// NewEnricher applies defaults to cfg; a nil embedder leaves records without vectors.
func NewEnricher(embedder ports.Embedder, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = defaultMinContentLength
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	if len(cfg.TrustedSources) == 0 {
		cfg.TrustedSources = defaultTrustedSources
	}
	if cfg.Policy != PolicyDrop {
		cfg.Policy = PolicyDegrade
	}

	trusted := make(map[string]struct{}, len(cfg.TrustedSources))
	for _, s := range cfg.TrustedSources {
		trusted[s] = struct{}{}
	}

	return &Enricher{
		embedder: embedder,
		cfg:      cfg,
		trusted:  trusted,
		logger:   orDiscard(logger),
	}
}

// Policy reports the failure policy fixed for this instance.
func (e *Enricher) Policy() FailurePolicy {
	return e.cfg.Policy
}

// Enrich returns a copy of rec with derived fields filled in.
func (e *Enricher) Enrich(ctx context.Context, rec domain.Record) (domain.Record, error) {
	out := rec.Clone()

	text := e.embeddingText(rec)
	out.Keywords = ExtractKeywords(text)
	out.ContentType = DetectContentType(rec)
	out.QualityScore = e.QualityScore(rec)

	if e.embedder == nil {
		return out, nil
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return domain.Record{}, &domain.EnrichmentError{URL: rec.URL, Err: err}
	}
	if e.cfg.Dimensions > 0 && len(vec) != e.cfg.Dimensions {
		return domain.Record{}, &domain.EnrichmentError{
			URL: rec.URL,
			Err: fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), e.cfg.Dimensions),
		}
	}
	out.Embedding = vec
	return out, nil
}

// EnrichAll enriches each record; a failing record is degraded or dropped per policy.
// Without a configured dimension the first embedding fixes it for the batch.
func (e *Enricher) EnrichAll(ctx context.Context, records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	dims := e.cfg.Dimensions

	for _, rec := range records {
		enriched, err := e.Enrich(ctx, rec)
		if err == nil && len(enriched.Embedding) > 0 {
			if dims == 0 {
				dims = len(enriched.Embedding)
			} else if len(enriched.Embedding) != dims {
				err = &domain.EnrichmentError{
					URL: rec.URL,
					Err: fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(enriched.Embedding), dims),
				}
			}
		}

		if err != nil {
			metrics.EnrichmentFailuresTotal.Inc()
			e.logger.Warn("enrichment failed", "url", rec.URL, "source", rec.SourceName, "policy", e.cfg.Policy, "error", err)
			if e.cfg.Policy == PolicyDrop {
				continue
			}
			enriched = degraded(rec)
		}
		out = append(out, enriched)
	}

	return out
}

// QualityScore sums independent bonuses, capped at 1.0.
func (e *Enricher) QualityScore(rec domain.Record) float64 {
	score := 0.0
	if utf8.RuneCountInString(rec.Title) > 10 {
		score += 0.2
	}
	if utf8.RuneCountInString(rec.Content) >= e.cfg.MinContentLength {
		score += 0.3
	}
	if rec.EngagementScore > 10 {
		score += 0.2
	}
	if rec.CommentCount > 5 {
		score += 0.2
	}
	if _, ok := e.trusted[rec.SourceName]; ok {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// DetectContentType applies the ordered keyword-trigger rules.
func DetectContentType(rec domain.Record) domain.ContentType {
	text := strings.ToLower(rec.Title + " " + rec.Content)
	url := strings.ToLower(rec.URL)

	for _, rule := range contentRules {
		haystack := text
		if rule.urlOnly {
			haystack = url
		}
		for _, trigger := range rule.triggers {
			if strings.Contains(haystack, trigger) {
				return rule.kind
			}
		}
	}
	return domain.ContentGeneral
}

func (e *Enricher) embeddingText(rec domain.Record) string {
	return truncateRunes(rec.Title+". "+rec.Content, e.cfg.MaxInputChars)
}

func degraded(rec domain.Record) domain.Record {
	out := rec.Clone()
	out.Keywords = []string{}
	out.ContentType = domain.ContentGeneral
	out.QualityScore = neutralQuality
	out.Embedding = nil
	out.EnrichmentFailed = true
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
