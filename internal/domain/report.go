package domain

import "time"

// Period is the time window a report covers.
type Period struct {
	Start time.Time
	End   time.Time
}

// GroupSummary is prose describing one content group.
type GroupSummary struct {
	Group string
	Text  string
	Count int
}

// Summary is the derived aggregate produced by the Summarize stage.
type Summary struct {
	Topics       []string
	Period       Period
	ArticleCount int
	TopURLs      []string
	Groups       []GroupSummary
	Trends       []string
	Insights     []string
	Generated    bool
	GeneratedAt  time.Time
}

// ReportMeta travels with a stored report.
type ReportMeta struct {
	RunID        string
	Title        string
	Topics       []string
	Period       Period
	ArticleCount int
	Trends       []string
	Insights     []string
	Extra        map[string]any
}

// Report is a persisted, composed report.
type Report struct {
	ID        string
	Title     string
	Content   string
	Meta      ReportMeta
	CreatedAt time.Time
}
