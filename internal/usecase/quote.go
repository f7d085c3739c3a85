package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	quoteMinChars   = 25
	quoteMaxChars   = 200
	summaryFallback = 200
)

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	spacePattern        = regexp.MustCompile(`\s+`)
	quotedPattern       = regexp.MustCompile(`["“]([^"“”]+)["”]`)
	sentenceSplit       = regexp.MustCompile(`[.!?]\s+`)
	sentenceEnd         = regexp.MustCompile(`[.!?]+\s+`)
)

var (
	attributionPhrases = []string{"said", "says", "according to", "told", "stated", "explained", "noted", "commented"}
	actionVerbs        = []string{"announced", "released", "launched", "developed", "created", "built", "introduced", "unveiled", "raised", "acquired"}
)

// ExtractKeyQuote picks a representative line from content. The rule chain is
// quoted text, attributed sentence, action sentence, first substantial sentence, title.
func ExtractKeyQuote(title, content string) string {
	text := cleanText(content)
	if text == "" {
		return strings.TrimSpace(title)
	}

	best := ""
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		q := strings.TrimSpace(m[1])
		if inQuoteBounds(q) && utf8.RuneCountInString(q) > utf8.RuneCountInString(best) {
			best = q
		}
	}
	if best != "" {
		return trimQuotes(best)
	}

	sentences := splitSentences(text)
	for _, triggers := range [][]string{attributionPhrases, actionVerbs} {
		for _, s := range sentences {
			if inQuoteBounds(s) && containsWord(strings.ToLower(s), triggers) {
				return trimQuotes(s)
			}
		}
	}
	for _, s := range sentences {
		if inQuoteBounds(s) {
			return trimQuotes(s)
		}
	}
	return strings.TrimSpace(title)
}

// ExtractSummary returns the first one or two sentences of content, or a truncated prefix.
func ExtractSummary(title, content string) string {
	text := cleanText(content)
	if text == "" {
		return "Article about " + strings.ToLower(strings.TrimSpace(title))
	}

	sentences := terminatedSentences(text)
	if len(sentences) >= 2 {
		return sentences[0] + " " + sentences[1]
	}
	if utf8.RuneCountInString(text) > summaryFallback {
		return truncateRunes(text, summaryFallback) + "..."
	}
	return text
}

func cleanText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = markdownLinkPattern.ReplaceAllString(s, "$1")
	s = urlPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(p), ".!?"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// terminatedSentences splits text keeping each sentence's own punctuation.
// A trailing fragment without a terminator gets a period.
func terminatedSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		out = append(out, s)
	}
	return out
}

func inQuoteBounds(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= quoteMinChars && n <= quoteMaxChars
}

func containsWord(lower string, words []string) bool {
	for _, w := range words {
		idx := strings.Index(lower, w)
		for idx >= 0 {
			end := idx + len(w)
			if (idx == 0 || !isLetter(lower[idx-1])) && (end == len(lower) || !isLetter(lower[end])) {
				return true
			}
			next := strings.Index(lower[idx+1:], w)
			if next < 0 {
				break
			}
			idx += next + 1
		}
	}
	return false
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func trimQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(s, `"'“”‘’`))
}
