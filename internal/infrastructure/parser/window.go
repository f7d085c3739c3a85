package parser

import (
	"regexp"
	"strings"
	"time"
)

func windowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = 7
	}
	return now.UTC().AddDate(0, 0, -windowDays)
}

// topicMatcher is a whole-word, case-insensitive containment check compiled once per topic.
// A blank topic matches everything.
type topicMatcher struct {
	expr *regexp.Regexp
}

func newTopicMatcher(topic string) topicMatcher {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return topicMatcher{}
	}
	return topicMatcher{expr: regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(topic) + `($|[^\pL\pN])`)}
}

func (m topicMatcher) Match(text string) bool {
	return m.expr == nil || m.expr.MatchString(text)
}
