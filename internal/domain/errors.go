package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoArticles signals that no source returned any record for the run.
	ErrNoArticles = errors.New("no articles ingested")
	// ErrGenerationUnavailable signals that the generative collaborator cannot serve the request.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrPersistence signals that storing run output failed after the report was composed.
	ErrPersistence = errors.New("persistence failed")
	// ErrReportNotFound signals a missing report.
	ErrReportNotFound = errors.New("report not found")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrDimensionMismatch signals an embedding of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// SourceFetchError isolates a failure of one source for one topic.
type SourceFetchError struct {
	Source string
	Topic  string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s (topic %q): %v", e.Source, e.Topic, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// EnrichmentError isolates a failure to enrich one record.
type EnrichmentError struct {
	URL string
	Err error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %s: %v", e.URL, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
