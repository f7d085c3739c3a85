package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

// Weights combines the four component scores; they sum to 1 so the composite stays in [0,1].
type Weights struct {
	Relevance  float64
	Quality    float64
	Engagement float64
	Recency    float64
}

// DefaultWeights is the documented 0.4/0.3/0.2/0.1 split.
var DefaultWeights = Weights{Relevance: 0.4, Quality: 0.3, Engagement: 0.2, Recency: 0.1}

// EngagementNorm holds per-source divisors for raw engagement numbers.
type EngagementNorm struct {
	Score    float64
	Comments float64
}

// Forum-style sources normalize by smaller constants than social ones.
var engagementNorms = map[string]EngagementNorm{
	"hackernews": {Score: 100, Comments: 50},
	"reddit":     {Score: 1000, Comments: 100},
	"twitter":    {Score: 500, Comments: 50},
}

var defaultEngagementNorm = EngagementNorm{Score: 100, Comments: 25}

const (
	recencyDecayHours       = 168.0
	neutralRecency          = 0.5
	keywordRelevanceDivisor = 5.0
	engagementScoreWeight   = 0.7
	engagementCommentWeight = 0.3
)

var relevanceTerms = []string{"ai", "machine learning", "startup", "tech", "innovation"}

// Ranker computes the composite ranking score of records against a topic set.
type Ranker struct {
	embedder ports.Embedder
	weights  Weights
	now      func() time.Time
	logger   *slog.Logger
}

// NewRanker wires the embedder used for the topic vector; nil forces keyword relevance.
func NewRanker(embedder ports.Embedder, logger *slog.Logger) *Ranker {
	return &Ranker{
		embedder: embedder,
		weights:  DefaultWeights,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   orDiscard(logger),
	}
}

// WithClock overrides the reference time used for recency.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	r.now = now
	return r
}

// Rank scores every record and returns them sorted by descending ranking score.
func (r *Ranker) Rank(ctx context.Context, records []domain.Record, topics []domain.Topic) []domain.Record {
	if len(records) == 0 {
		return []domain.Record{}
	}

	topicVec := r.topicEmbedding(ctx, topics)
	terms := fallbackTerms(topics)
	now := r.now()

	ranked := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		out := rec.Clone()
		out.RelevanceScore = relevance(out, topicVec, terms)
		out.EngagementNorm = EngagementScore(out)
		out.RecencyScore = RecencyScore(out.PublishedAt, now)
		out.RankingScore = r.weights.Composite(out)
		ranked = append(ranked, out)
	}

	SortRanked(ranked)

	r.logger.Info("ranking complete", "count", len(ranked), "top_score", ranked[0].RankingScore)
	return ranked
}

// Composite returns the weighted sum of the four component scores.
func (w Weights) Composite(rec domain.Record) float64 {
	return w.Relevance*rec.RelevanceScore +
		w.Quality*rec.QualityScore +
		w.Engagement*rec.EngagementNorm +
		w.Recency*rec.RecencyScore
}

func (r *Ranker) topicEmbedding(ctx context.Context, topics []domain.Topic) []float32 {
	if r.embedder == nil || len(topics) == 0 {
		return nil
	}
	vec, err := r.embedder.Embed(ctx, strings.Join(domain.TopicNames(topics), " "))
	if err != nil {
		r.logger.Warn("topic embedding unavailable, using keyword relevance", "error", err)
		return nil
	}
	return vec
}

func relevance(rec domain.Record, topicVec []float32, terms []string) float64 {
	if sim, ok := cosine(rec.Embedding, topicVec); ok {
		return clamp01((sim + 1) / 2)
	}
	return KeywordRelevance(rec, terms)
}

// KeywordRelevance counts keyword, title and content hits against terms, normalized by a fixed divisor.
func KeywordRelevance(rec domain.Record, terms []string) float64 {
	title := strings.ToLower(rec.Title)
	content := strings.ToLower(rec.Content)

	matches := 0
	for _, kw := range rec.Keywords {
		kw = strings.ToLower(kw)
		for _, term := range terms {
			if strings.Contains(kw, term) {
				matches++
				break
			}
		}
	}
	for _, term := range terms {
		if strings.Contains(title, term) || strings.Contains(content, term) {
			matches++
		}
	}

	return math.Min(1.0, float64(matches)/keywordRelevanceDivisor)
}

func fallbackTerms(topics []domain.Topic) []string {
	seen := map[string]struct{}{}
	terms := make([]string, 0, len(relevanceTerms)+len(topics))
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, term := range relevanceTerms {
		add(term)
	}
	for _, topic := range topics {
		add(topic.Name)
		for _, hint := range topic.Keywords {
			add(hint)
		}
	}
	return terms
}

// EngagementScore normalizes score and comments by source-specific constants and mixes them 70/30.
func EngagementScore(rec domain.Record) float64 {
	norm, ok := engagementNorms[rec.SourceName]
	if !ok {
		norm = defaultEngagementNorm
	}
	score := math.Min(1.0, float64(max(rec.EngagementScore, 0))/norm.Score)
	comments := math.Min(1.0, float64(max(rec.CommentCount, 0))/norm.Comments)
	return score*engagementScoreWeight + comments*engagementCommentWeight
}

// RecencyScore decays exponentially over a week; a missing timestamp is neutral.
func RecencyScore(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return neutralRecency
	}
	hours := now.Sub(publishedAt).Hours()
	return clamp01(math.Exp(-hours / recencyDecayHours))
}

// SortRanked orders by descending score, then earliest publishedAt, then url.
func SortRanked(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.RankingScore != b.RankingScore {
			return a.RankingScore > b.RankingScore
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			switch {
			case a.PublishedAt.IsZero():
				return false
			case b.PublishedAt.IsZero():
				return true
			default:
				return a.PublishedAt.Before(b.PublishedAt)
			}
		}
		return a.URL < b.URL
	})
}

// GetTop returns the first n records of an already sorted slice.
func GetTop(records []domain.Record, n int) []domain.Record {
	if n <= 0 {
		return []domain.Record{}
	}
	if n > len(records) {
		n = len(records)
	}
	return append([]domain.Record(nil), records[:n]...)
}

// FilterByThreshold keeps records whose ranking score is at least minScore.
func FilterByThreshold(records []domain.Record, minScore float64) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.RankingScore >= minScore {
			out = append(out, rec)
		}
	}
	return out
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
