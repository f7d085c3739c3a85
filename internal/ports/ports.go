package ports

import (
	"context"
	"time"

	"WeeklyIntel/internal/domain"
)

// Source pulls records about one topic from a single upstream provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context, topic string, windowDays int) ([]domain.Record, error)
}

// Repository persists records and composed reports.
type Repository interface {
	StoreRecords(ctx context.Context, records []domain.Record) ([]string, error)
	StoreReport(ctx context.Context, text string, meta domain.ReportMeta) (string, error)
	GetRecent(ctx context.Context, windowDays, limit int) ([]domain.Record, error)
	GetReportByID(ctx context.Context, id string) (*domain.Report, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerationParams tunes a single generation call.
type GenerationParams struct {
	MaxTokens   int
	Temperature float32
	Group       string
}

// Generator produces report prose. Any failure means generation is unavailable.
type Generator interface {
	SummarizeGroup(ctx context.Context, text string, params GenerationParams) (string, error)
	ComposeReport(ctx context.Context, text string, params GenerationParams) (string, error)
}

// Notifier streams finished reports to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when workflow runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
