// Package analytics is the review aggregation engine: tokenizer, topic
// classifier and the aggregator that builds a domain.Report from a corpus
// snapshot. Everything here is pure and safe for concurrent use; the
// package does no I/O and does not log.
package analytics

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenRunes is the shortest token kept.
const minTokenRunes = 2

// DefaultStopWords covers articles, pronouns, conjunctions, prepositions and
// the most common auxiliary verbs. Content words such as "app" or "even"
// stay in the word table.
var DefaultStopWords = []string{
	"the", "an", "and", "or", "but", "nor", "so", "yet",
	"is", "are", "was", "were", "be", "been", "being", "am",
	"to", "of", "in", "on", "at", "by", "for", "with", "from", "as", "into", "about",
	"it", "its", "it's", "this", "that", "these", "those", "there", "here",
	"i", "me", "my", "mine", "we", "us", "our", "you", "your", "yours",
	"he", "him", "his", "she", "her", "they", "them", "their", "theirs",
	"have", "has", "had", "do", "does", "did", "will", "would", "shall", "should",
	"can", "could", "may", "might", "must", "get", "got",
	"if", "then", "than", "when", "what", "which", "who", "whom", "how", "all",
	"im", "ive", "very", "too", "also",
}

// Tokenizer turns free text into normalized terms. It holds only the
// immutable stop-word set, so one instance can be shared by any number of
// goroutines.
type Tokenizer struct {
	stop map[string]struct{}
}

// NewTokenizer builds a tokenizer. A nil slice selects DefaultStopWords; an
// empty non-nil slice disables stop-word filtering. Stop words are passed
// through the same normalization as text, so "don't" and "dont" are equal.
func NewTokenizer(stopWords []string) *Tokenizer {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	t := &Tokenizer{stop: make(map[string]struct{}, len(stopWords))}
	for _, w := range stopWords {
		for _, term := range splitTerms(w) {
			t.stop[term] = struct{}{}
		}
	}
	return t
}

// Tokenize lower-cases text, strips everything except letters, digits and
// apostrophes inside words, splits into terms and drops short terms and stop
// words. Inner apostrophes are removed, so "won't" becomes "wont".
// Empty input yields nil.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	terms := splitTerms(text)
	out := terms[:0]
	for _, term := range terms {
		if utf8.RuneCountInString(term) < minTokenRunes {
			continue
		}
		if _, ok := t.stop[term]; ok {
			continue
		}
		out = append(out, term)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsStopWord reports whether the normalized term is filtered.
func (t *Tokenizer) IsStopWord(term string) bool {
	_, ok := t.stop[term]
	return ok
}

// splitTerms does normalization and splitting without any filtering.
func splitTerms(text string) []string {
	src := []rune(fold(text))
	terms := make([]string, 0, len(src)/5+1)

	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			terms = append(terms, b.String())
			b.Reset()
		}
	}
	for i, r := range src {
		switch {
		case isApostrophe(r):
			// U+02BC is a letter to unicode, so test apostrophes first.
			if b.Len() > 0 && i+1 < len(src) && isWordRune(src[i+1]) {
				continue // joined: won't -> wont
			}
			flush()
		case isWordRune(r):
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return terms
}

// fold lower-cases and strips diacritics. ASCII input skips the transform.
func fold(s string) string {
	if !isASCII(s) {
		// transform.Chain keeps state, build a fresh one per call.
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
	}
	return strings.ToLower(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// isApostrophe accepts ASCII and typographic apostrophes (U+2019, U+02BC).
func isApostrophe(r rune) bool { return r == '\'' || r == '’' || r == 'ʼ' }
