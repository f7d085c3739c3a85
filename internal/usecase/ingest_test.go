package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"WeeklyIntel/internal/domain"
)

var ai = []domain.Topic{{Name: "AI"}}

func TestFetchAllMergesSuccessfulSources(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.October, 10, 12, 0, 0, 0, time.UTC)
	alpha := &fakeSource{name: "alpha", records: makeRecords("alpha", 5, base)}
	broken := &fakeSource{name: "broken", err: errUpstream}
	gamma := &fakeSource{name: "gamma", records: makeRecords("gamma", 3, base)}

	coord := NewCoordinator(sourcesOf(alpha, broken, gamma), 0, nil)
	result, err := coord.FetchAll(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(result.Records) != 8 {
		t.Fatalf("expected 8 records, got %d", len(result.Records))
	}
	if len(result.Failures) != 1 || result.Failures[0].Source != "broken" || result.Failures[0].Topic != "AI" {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}

	var fetchErr *domain.SourceFetchError
	if !errors.As(result.Failures[0].Err, &fetchErr) || !errors.Is(fetchErr, errUpstream) {
		t.Fatalf("expected SourceFetchError wrapping upstream error, got %v", result.Failures[0].Err)
	}

	got := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		if rec.Topic != "AI" {
			t.Fatalf("record %s not annotated with topic", rec.URL)
		}
		got = append(got, rec.URL)
	}
	want := make([]string, 0, 8)
	for _, rec := range append(makeRecords("alpha", 5, base), makeRecords("gamma", 3, base)...) {
		want = append(want, rec.URL)
	}
	sort.Strings(got)
	sort.Strings(want)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("union mismatch at %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestFetchAllAllSourcesFail(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(sourcesOf(
		&fakeSource{name: "a", err: errUpstream},
		&fakeSource{name: "b", err: errUpstream},
		&fakeSource{name: "c", panics: true},
	), 0, nil)

	result, err := coord.FetchAll(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
	if len(result.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(result.Failures))
	}
}

func TestFetchAllEmptySourcesIsNoArticles(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(sourcesOf(&fakeSource{name: "quiet"}), 0, nil)
	_, err := coord.FetchAll(context.Background(), ai, 7)
	if !errors.Is(err, domain.ErrNoArticles) {
		t.Fatalf("expected ErrNoArticles, got %v", err)
	}
}

func TestFetchAllRecoversPanickingSource(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	healthy := &fakeSource{name: "healthy", records: makeRecords("ok", 2, base)}
	coord := NewCoordinator(sourcesOf(&fakeSource{name: "panicky", panics: true}, healthy), 0, nil)

	result, err := coord.FetchAll(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(result.Records) != 2 || len(result.Failures) != 1 {
		t.Fatalf("unexpected result: %d records, %d failures", len(result.Records), len(result.Failures))
	}
}

func TestFetchAllSourceTimeoutKeepsPartialResults(t *testing.T) {
	t.Parallel()

	base := time.Now().UTC()
	fast := &fakeSource{name: "fast", records: makeRecords("fast", 3, base)}
	slow := &fakeSource{name: "slow", block: true}

	coord := NewCoordinator(sourcesOf(fast, slow), 50*time.Millisecond, nil)
	result, err := coord.FetchAll(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("expected partial results kept, got %d", len(result.Records))
	}
	if len(result.Failures) != 1 || !errors.Is(result.Failures[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline failure, got %+v", result.Failures)
	}
}

func TestFetchAllRejectsRecordsWithoutURL(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "social", records: []domain.Record{
		{Title: "missing url"},
		{Title: "tagged post", Tags: []string{domain.NoURLTag}},
		{Title: "linked", URL: "https://example.com/x"},
	}}

	result, err := NewCoordinator(sourcesOf(src), 0, nil).FetchAll(context.Background(), ai, 7)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	for _, rec := range result.Records {
		if rec.SourceName != "social" {
			t.Fatalf("expected source name stamped, got %q", rec.SourceName)
		}
	}
}

func TestFetchAllFansOutPerTopic(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "multi", records: makeRecords("m", 1, time.Now())}
	topics := []domain.Topic{{Name: "AI"}, {Name: "startups"}}

	result, err := NewCoordinator(sourcesOf(src), 0, nil).FetchAll(context.Background(), topics, 7)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if src.calls.Load() != 2 {
		t.Fatalf("expected one call per topic, got %d", src.calls.Load())
	}
	if len(result.Records) != 2 || result.Records[0].Topic == result.Records[1].Topic {
		t.Fatalf("expected one record per topic, got %+v", result.Records)
	}
}
