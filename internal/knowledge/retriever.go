package knowledge

import (
	"sort"
	"strings"
)

// stopWords are common English tokens that carry no retrieval signal.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "him": {}, "his": {},
	"how": {}, "its": {}, "may": {}, "she": {}, "too": {}, "use": {},
	"with": {}, "that": {}, "this": {}, "have": {}, "from": {}, "they": {},
	"been": {}, "were": {}, "when": {}, "what": {}, "your": {}, "just": {},
	"like": {}, "very": {}, "feel": {}, "feeling": {}, "being": {},
	"about": {}, "would": {}, "there": {}, "their": {}, "because": {},
	"really": {}, "lately": {}, "always": {}, "sometimes": {},
}

// Retrieve scores each chunk by stop-word-filtered keyword overlap with
// the query and returns the content of the topK best matches. Zero-score
// chunks are dropped; a query that reduces to no usable tokens returns
// an empty result rather than guessing. Pure function, no I/O.
func Retrieve(query string, corpus []Chunk, topK int) []string {
	tokens := tokenize(query)
	if len(tokens) == 0 || topK <= 0 {
		return nil
	}

	type scored struct {
		content string
		score   int
	}

	results := make([]scored, 0, len(corpus))
	for _, chunk := range corpus {
		content := strings.ToLower(chunk.Content)
		score := 0
		for _, tok := range tokens {
			// One hit per token per chunk; repeated containment
			// does not double count.
			if strings.Contains(content, tok) {
				score++
			}
		}
		if score > 0 {
			results = append(results, scored{content: chunk.Content, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.content
	}
	return out
}

// tokenize lowercases the query, strips punctuation, splits on whitespace,
// and drops short tokens and stop words.
func tokenize(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '\t', r == '\n', r == '\r':
			return ' '
		default:
			return ' '
		}
	}, query)

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) <= 2 {
			continue
		}
		if _, ok := stopWords[tok]; ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
