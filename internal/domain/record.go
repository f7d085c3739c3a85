package domain

import (
	"strings"
	"time"
)

// NoURLTag marks records that legitimately carry no url (e.g. social posts).
const NoURLTag = "no-url"

// ContentType classifies a record by its dominant intent.
type ContentType string

const (
	ContentAnnouncement ContentType = "announcement"
	ContentFunding      ContentType = "funding"
	ContentTutorial     ContentType = "tutorial"
	ContentResearch     ContentType = "research"
	ContentCode         ContentType = "code"
	ContentGeneral      ContentType = "general"
)

// Record is the standardized content item produced by a Source and refined by each stage.
type Record struct {
	ID          string
	Title       string
	Content     string
	URL         string
	Author      string
	SourceName  string
	Topic       string
	PublishedAt time.Time

	EngagementScore int
	CommentCount    int
	Tags            []string

	ContentType ContentType
	Keywords    []string
	Embedding   []float32

	QualityScore     float64
	RelevanceScore   float64
	EngagementNorm   float64
	RecencyScore     float64
	RankingScore     float64
	EnrichmentFailed bool

	Metadata map[string]any
}

// IdentityKey returns the dedup key: the trimmed url, case preserved.
func (r Record) IdentityKey() string {
	return strings.TrimSpace(r.URL)
}

// HasTag reports whether tag is present in r.Tags.
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Valid reports whether the record satisfies the url invariant.
func (r Record) Valid() bool {
	return r.IdentityKey() != "" || r.HasTag(NoURLTag)
}

// Clone returns a copy whose slices and metadata map are not shared with r.
func (r Record) Clone() Record {
	out := r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.Keywords != nil {
		out.Keywords = append([]string(nil), r.Keywords...)
	}
	if r.Embedding != nil {
		out.Embedding = append([]float32(nil), r.Embedding...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Topic is one subject of a run.
type Topic struct {
	Name     string
	Keywords []string
}

// TopicNames extracts the names in order.
func TopicNames(topics []Topic) []string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.Name)
	}
	return names
}
