package extract

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// MetadataExtractor derives searchable attributes from a document's text.
type MetadataExtractor interface {
	Extract(ctx context.Context, documentID, text string) (map[string]any, error)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true, "this": true,
	"that": true, "from": true, "have": true, "has": true, "will": true, "been": true,
	"they": true, "their": true, "which": true, "would": true, "there": true,
	"about": true, "into": true, "than": true, "then": true, "also": true,
}

// HeuristicExtractor computes metadata locally without any model call.
type HeuristicExtractor struct {
	MaxKeywords int
}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{MaxKeywords: 10}
}

func (h *HeuristicExtractor) Extract(ctx context.Context, documentID, text string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := h.MaxKeywords
	if limit <= 0 {
		limit = 10
	}
	words := strings.Fields(text)
	return map[string]any{
		"title":      guessTitle(text),
		"word_count": len(words),
		"char_count": len([]rune(text)),
		"keywords":   topKeywords(words, limit),
		"language":   detectLanguage(text),
		"extractor":  "heuristic",
	}, nil
}

// guessTitle returns the first non-empty line, capped at 120 runes.
func guessTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > 120 {
			return string(r[:120])
		}
		return line
	}
	return ""
}

// topKeywords ranks by frequency, ties alphabetically, so the result is stable.
func topKeywords(words []string, limit int) []string {
	freq := make(map[string]int)
	for _, w := range words {
		w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if len([]rune(w)) <= 3 || stopWords[w] {
			continue
		}
		freq[w]++
	}

	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

// detectLanguage performs simple language detection
func detectLanguage(text string) string {
	lowerText := " " + strings.ToLower(strings.Join(strings.Fields(text), " ")) + " "

	englishWords := []string{"the", "and", "or", "of", "to", "in", "for", "with", "on", "at"}
	englishCount := 0
	for _, word := range englishWords {
		englishCount += strings.Count(lowerText, " "+word+" ")
	}

	if englishCount > 10 {
		return "en"
	}
	return "unknown"
}
