package usecase

import (
	"regexp"
	"sort"
	"strings"
)

const maxKeywords = 10

var wordExpr = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"of": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {},
	"they": {}, "me": {}, "him": {}, "her": {}, "us": {}, "them": {},
}

// ExtractKeywords returns up to ten lower-cased alphabetic tokens ranked by frequency.
// Ties keep first-occurrence order.
func ExtractKeywords(text string) []string {
	words := wordExpr.FindAllString(strings.ToLower(text), -1)

	counts := map[string]int{}
	order := map[string]int{}
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, ok := order[w]; !ok {
			order[w] = len(order)
		}
		counts[w]++
	}

	keywords := make([]string, 0, len(counts))
	for w := range counts {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return order[keywords[i]] < order[keywords[j]]
	})

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}
