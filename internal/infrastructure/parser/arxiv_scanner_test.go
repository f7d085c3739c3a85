package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"WeeklyIntel/internal/config"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/1234.56789">arXiv:1234.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	    <div class="list-authors"><a href="/a/doe_j">Jane Doe</a>, <a href="/a/roe_r">Rick Roe</a></div>
	    <p class="mathjax">Abstract: Sample abstract text.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	dt := doc.Find("dt").First()
	dd := doc.Find("dd").First()

	rec, err := parseEntry(dt, dd, "arxiv", "cs.AI")
	if err != nil {
		t.Fatalf("parseEntry error: %v", err)
	}

	if rec.Metadata["arxiv_id"] != "arXiv:1234.56789" {
		t.Fatalf("unexpected id: %v", rec.Metadata["arxiv_id"])
	}
	if rec.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", rec.Title)
	}
	if rec.Content != "Sample abstract text." {
		t.Fatalf("unexpected abstract: %s", rec.Content)
	}
	if rec.URL != "https://arxiv.org/abs/1234.56789" {
		t.Fatalf("unexpected url: %s", rec.URL)
	}
	if rec.Author != "Jane Doe, Rick Roe" {
		t.Fatalf("unexpected authors: %s", rec.Author)
	}
	if rec.SourceName != "arxiv" || len(rec.Tags) != 1 || rec.Tags[0] != "cs.AI" {
		t.Fatalf("unexpected source/tags: %s %v", rec.SourceName, rec.Tags)
	}

	wantDate := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	if !rec.PublishedAt.Equal(wantDate) {
		t.Fatalf("unexpected published date: %v", rec.PublishedAt)
	}
}

func TestArxivScannerFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<dl>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 8 Nov 2025</div>
		    <div class="list-title mathjax">Title: Fresh AI Article</div>
		    <p class="mathjax">Abstract: brand new.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00003">arXiv:2501.00003</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 6 Nov 2025</div>
		    <div class="list-title mathjax">Title: Protein folding</div>
		    <p class="mathjax">Abstract: nothing about the topic.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 20 Oct 2025</div>
		    <div class="list-title mathjax">Title: Old AI Article</div>
		    <p class="mathjax">Abstract: older.</p>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	sc := NewArxivScanner("arxiv", server.Client(), []config.CategoryConfig{
		{Name: "cs.AI", URL: server.URL + "/list/cs.AI"},
	})
	sc.pageSize = 10
	sc.now = func() time.Time { return time.Date(2025, time.November, 9, 10, 0, 0, 0, time.UTC) }

	records, err := sc.Fetch(context.Background(), "AI", 7)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Title != "Fresh AI Article" {
		t.Fatalf("unexpected record: %s", records[0].Title)
	}
	if records[0].Content != "brand new." {
		t.Fatalf("unexpected abstract: %s", records[0].Content)
	}
}

func TestArxivScannerRequiresCategories(t *testing.T) {
	t.Parallel()

	if _, err := NewArxivScanner("arxiv", nil, nil).Fetch(context.Background(), "AI", 7); err == nil {
		t.Fatalf("expected error without categories")
	}
}

func TestTopicMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		text  string
		want  bool
	}{
		{"ai", "New AI model", true},
		{"AI", "Training again", false},
		{"", "anything", true},
		{"   ", "anything", true},
		{"C++", "Rust vs C++ benchmarks", true},
		{"C++", "Rust vs C benchmarks", false},
		{"Über", "Notes on über-scale clusters", true},
	}

	for _, tt := range tests {
		m := newTopicMatcher(tt.topic)
		for range 2 {
			if got := m.Match(tt.text); got != tt.want {
				t.Fatalf("newTopicMatcher(%q).Match(%q) = %v, want %v", tt.topic, tt.text, got, tt.want)
			}
		}
	}
}
