package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"WeeklyIntel/internal/domain"
	"WeeklyIntel/internal/metrics"
	"WeeklyIntel/internal/usecase"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, topics []domain.Topic, windowDays int) (usecase.RunState, error)
}

// ReportStore is the read side of storage used by the API.
type ReportStore interface {
	GetReportByID(ctx context.Context, id string) (*domain.Report, error)
	ListReports(ctx context.Context, limit int) ([]domain.Report, error)
	GetRecent(ctx context.Context, windowDays, limit int) ([]domain.Record, error)
}

// Server exposes the workflow and stored reports over HTTP.
type Server struct {
	runner            Runner
	store             ReportStore
	defaultTopics     []domain.Topic
	defaultWindowDays int
	logger            *slog.Logger
}

// NewServer creates an HTTP API server. A nil store disables the read endpoints.
func NewServer(runner Runner, store ReportStore, topics []domain.Topic, windowDays int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		runner:            runner,
		store:             store,
		defaultTopics:     topics,
		defaultWindowDays: windowDays,
		logger:            logger,
	}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/runs", s.createRun)
	r.Get("/reports", s.listReports)
	r.Get("/reports/{id}", s.getReport)
	r.Get("/records/recent", s.recentRecords)
	return r
}

type runRequest struct {
	Topics     []topicRequest `json:"topics"`
	WindowDays int            `json:"window_days"`
}

type topicRequest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

type runResponse struct {
	RunID         string         `json:"run_id"`
	Stage         string         `json:"stage"`
	ReportID      string         `json:"report_id,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Report        string         `json:"report,omitempty"`
}

type reportResponse struct {
	ID           string         `json:"id"`
	RunID        string         `json:"run_id,omitempty"`
	Title        string         `json:"title"`
	Topics       []string       `json:"topics"`
	PeriodStart  *time.Time     `json:"period_start,omitempty"`
	PeriodEnd    *time.Time     `json:"period_end,omitempty"`
	ArticleCount int            `json:"article_count"`
	Trends       []string       `json:"trends,omitempty"`
	Insights     []string       `json:"insights,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Content      string         `json:"content,omitempty"`
}

type recordResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	Source       string    `json:"source"`
	Author       string    `json:"author,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	ContentType  string    `json:"content_type"`
	Keywords     []string  `json:"keywords,omitempty"`
	QualityScore float64   `json:"quality_score"`
	RankingScore float64   `json:"ranking_score"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createRun handles POST /runs. An empty body runs the configured topics.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	topics := s.defaultTopics
	if len(req.Topics) > 0 {
		topics = make([]domain.Topic, 0, len(req.Topics))
		for _, t := range req.Topics {
			if t.Name == "" {
				writeError(w, http.StatusBadRequest, "topic name is required")
				return
			}
			topics = append(topics, domain.Topic{Name: t.Name, Keywords: t.Keywords})
		}
	}
	windowDays := req.WindowDays
	if windowDays <= 0 {
		windowDays = s.defaultWindowDays
	}

	state, err := s.runner.Run(r.Context(), topics, windowDays)
	resp := runResponse{
		RunID:    state.ID,
		Stage:    string(state.Stage),
		ReportID: state.ReportID(),
		Metadata: publicMeta(state.Metadata),
		Report:   state.ReportText,
	}
	if state.FailureReason != nil {
		resp.FailureReason = state.FailureReason.Error()
	}

	switch {
	case errors.Is(err, usecase.ErrNoTopics), errors.Is(err, usecase.ErrDuplicateTopic):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNoArticles):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case err != nil:
		s.logger.Error("run failed", "run_id", state.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	report, err := s.store.GetReportByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(*report, true))
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reports, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		s.internalError(w, err)
		return
	}

	items := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		items = append(items, toReportResponse(report, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) recentRecords(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	windowDays := s.defaultWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		windowDays = v
	}

	records, err := s.store.GetRecent(r.Context(), windowDays, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}

	items := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, recordResponse{
			ID:           rec.ID,
			Title:        rec.Title,
			URL:          rec.URL,
			Source:       rec.SourceName,
			Author:       rec.Author,
			PublishedAt:  rec.PublishedAt,
			ContentType:  string(rec.ContentType),
			Keywords:     rec.Keywords,
			QualityScore: rec.QualityScore,
			RankingScore: rec.RankingScore,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("internal error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxListLimit), true
}

func toReportResponse(report domain.Report, withContent bool) reportResponse {
	resp := reportResponse{
		ID:           report.ID,
		RunID:        report.Meta.RunID,
		Title:        report.Title,
		Topics:       report.Meta.Topics,
		ArticleCount: report.Meta.ArticleCount,
		Trends:       report.Meta.Trends,
		Insights:     report.Meta.Insights,
		Extra:        report.Meta.Extra,
		CreatedAt:    report.CreatedAt,
	}
	if !report.Meta.Period.Start.IsZero() {
		start := report.Meta.Period.Start
		resp.PeriodStart = &start
	}
	if !report.Meta.Period.End.IsZero() {
		end := report.Meta.Period.End
		resp.PeriodEnd = &end
	}
	if withContent {
		resp.Content = report.Content
	}
	return resp
}

// publicMeta drops bulky per-record entries from run metadata.
func publicMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == usecase.MetaRecordIDs {
			continue
		}
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
