package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/ports"
)

var recordColumns = []string{
	"id", "url", "title", "content", "author", "source_name", "topic", "published_at",
	"engagement_score", "comment_count", "tags", "content_type", "keywords",
	"quality_score", "relevance_score", "ranking_score", "metadata", "stored_at",
}

var reportColumns = []string{
	"id", "run_id", "title", "content", "topics", "period_start", "period_end",
	"article_count", "meta", "created_at",
}

const recordUpsertSuffix = `ON CONFLICT (url) DO UPDATE SET
    title = excluded.title,
    content = excluded.content,
    author = excluded.author,
    engagement_score = excluded.engagement_score,
    comment_count = excluded.comment_count,
    tags = excluded.tags,
    content_type = excluded.content_type,
    keywords = excluded.keywords,
    quality_score = excluded.quality_score,
    relevance_score = excluded.relevance_score,
    ranking_score = excluded.ranking_score,
    metadata = excluded.metadata,
    stored_at = excluded.stored_at
RETURNING id`

// Repository persists records and reports through database/sql.
type Repository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.Repository = (*Repository)(nil)

// NewRepository wires a sql.DB opened with the given driver.
func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(placeholders(driver)),
		now: time.Now,
	}
}

// Migrate creates the schema when absent.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

// StoreRecords upserts records by url and returns their ids in input order.
func (r *Repository) StoreRecords(ctx context.Context, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return []string{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	storedAt := r.now().UTC().Unix()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		values, err := recordValues(rec, storedAt)
		if err != nil {
			return nil, err
		}

		query, args, err := r.sb.Insert("records").
			Columns(recordColumns...).
			Values(values...).
			Suffix(recordUpsertSuffix).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build record insert: %w", err)
		}

		var id string
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return nil, fmt.Errorf("upsert record %q: %w", rec.URL, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit records: %w", err)
	}
	return ids, nil
}

// StoreReport inserts a composed report and returns its id.
func (r *Repository) StoreReport(ctx context.Context, text string, meta domain.ReportMeta) (string, error) {
	topics, err := json.Marshal(nonNil(meta.Topics))
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	extra, err := json.Marshal(reportMetaJSON{Trends: meta.Trends, Insights: meta.Insights, Extra: meta.Extra})
	if err != nil {
		return "", fmt.Errorf("marshal report meta: %w", err)
	}

	id := uuid.NewString()
	query, args, err := r.sb.Insert("reports").
		Columns(reportColumns...).
		Values(
			id,
			meta.RunID,
			meta.Title,
			text,
			string(topics),
			unixOrNull(meta.Period.Start),
			unixOrNull(meta.Period.End),
			meta.ArticleCount,
			string(extra),
			r.now().UTC().Unix(),
		).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build report insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// GetRecent returns records stored within the last windowDays, best ranked first.
func (r *Repository) GetRecent(ctx context.Context, windowDays, limit int) ([]domain.Record, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	cutoff := r.now().UTC().Add(-time.Duration(windowDays) * 24 * time.Hour).Unix()

	builder := r.sb.Select(recordColumns...).
		From("records").
		Where(sq.GtOrEq{"stored_at": cutoff}).
		OrderBy("ranking_score DESC", "stored_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetReportByID loads one report; domain.ErrReportNotFound when absent.
func (r *Repository) GetReportByID(ctx context.Context, id string) (*domain.Report, error) {
	query, args, err := r.sb.Select(reportColumns...).
		From("reports").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build report query: %w", err)
	}

	report, err := scanReport(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, domain.ErrReportNotFound)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns the newest reports first.
func (r *Repository) ListReports(ctx context.Context, limit int) ([]domain.Report, error) {
	builder := r.sb.Select(reportColumns...).
		From("reports").
		OrderBy("created_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

type reportMetaJSON struct {
	Trends   []string       `json:"trends,omitempty"`
	Insights []string       `json:"insights,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type scanner interface {
	Scan(dest ...any) error
}

func recordValues(rec domain.Record, storedAt int64) ([]any, error) {
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	keywords, err := json.Marshal(nonNil(rec.Keywords))
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	var url any
	if key := rec.IdentityKey(); key != "" {
		url = key
	}

	return []any{
		uuid.NewString(),
		url,
		rec.Title,
		rec.Content,
		rec.Author,
		rec.SourceName,
		rec.Topic,
		unixOrNull(rec.PublishedAt),
		rec.EngagementScore,
		rec.CommentCount,
		string(tags),
		string(rec.ContentType),
		string(keywords),
		rec.QualityScore,
		rec.RelevanceScore,
		rec.RankingScore,
		string(meta),
		storedAt,
	}, nil
}

func scanRecord(row scanner) (domain.Record, error) {
	var (
		rec                      domain.Record
		url                      sql.NullString
		publishedAt              sql.NullInt64
		tags, keywords, metadata string
		contentType              string
		storedAt                 int64
	)
	err := row.Scan(
		&rec.ID, &url, &rec.Title, &rec.Content, &rec.Author, &rec.SourceName, &rec.Topic, &publishedAt,
		&rec.EngagementScore, &rec.CommentCount, &tags, &contentType, &keywords,
		&rec.QualityScore, &rec.RelevanceScore, &rec.RankingScore, &metadata, &storedAt,
	)
	if err != nil {
		return domain.Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.URL = url.String
	rec.ContentType = domain.ContentType(contentType)
	if publishedAt.Valid {
		rec.PublishedAt = time.Unix(publishedAt.Int64, 0).UTC()
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return domain.Record{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return domain.Record{}, fmt.Errorf("decode keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return domain.Record{}, fmt.Errorf("decode metadata: %w", err)
	}
	return rec, nil
}

func scanReport(row scanner) (*domain.Report, error) {
	var (
		report       domain.Report
		topics, meta string
		start, end   sql.NullInt64
		createdAt    int64
		decodedMeta  reportMetaJSON
	)
	err := row.Scan(
		&report.ID, &report.Meta.RunID, &report.Title, &report.Content, &topics,
		&start, &end, &report.Meta.ArticleCount, &meta, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	if err := json.Unmarshal([]byte(topics), &report.Meta.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &decodedMeta); err != nil {
		return nil, fmt.Errorf("decode report meta: %w", err)
	}

	report.Meta.Title = report.Title
	report.Meta.Trends = decodedMeta.Trends
	report.Meta.Insights = decodedMeta.Insights
	report.Meta.Extra = decodedMeta.Extra
	if start.Valid {
		report.Meta.Period.Start = time.Unix(start.Int64, 0).UTC()
	}
	if end.Valid {
		report.Meta.Period.End = time.Unix(end.Int64, 0).UTC()
	}
	report.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &report, nil
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Unix()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
