package analytics

import (
	"fmt"
	"slices"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"review_insights/internal/domain"
)

// Classifier maps review text to topics using a keyword rule table.
//
// Keywords go through the same Tokenizer as review bodies and are matched
// against the space-joined token stream. A match must begin at a token
// start but may end inside a token, so "cant-login" matches "Can't login!"
// and "crash" matches "crashes" while "helpful" does not match "unhelpful".
// Matching is a single Aho-Corasick pass per review regardless of the
// number of rules.
type Classifier struct {
	tok      *Tokenizer
	matcher  *ahocorasick.Matcher
	patterns []string
	targets  [][]domain.TopicMatch // pattern index -> topics it signals
	topics   []string
}

// NewClassifier compiles rules. A rule with an empty topic, an unknown
// sentiment, or a keyword that normalizes to nothing (only stop words or
// punctuation) is rejected with a *domain.ValidationError.
func NewClassifier(rules []domain.TopicRule, tok *Tokenizer) (*Classifier, error) {
	c := &Classifier{tok: tok}
	byPattern := make(map[string]int, len(rules))
	seenTopic := make(map[string]struct{})

	for i, r := range rules {
		topic := strings.TrimSpace(r.Topic)
		if topic == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("topicRules[%d].topic", i), "must not be empty")
		}
		if !r.Sentiment.Valid() {
			return nil, domain.NewValidationError(fmt.Sprintf("topicRules[%d].sentiment", i),
				fmt.Sprintf("unknown sentiment %q", r.Sentiment))
		}
		pattern := strings.Join(tok.Tokenize(r.Keyword), " ")
		if pattern == "" {
			return nil, domain.NewValidationError(fmt.Sprintf("topicRules[%d].keyword", i),
				fmt.Sprintf("%q has no terms after normalization", r.Keyword))
		}

		idx, ok := byPattern[pattern]
		if !ok {
			idx = len(c.patterns)
			byPattern[pattern] = idx
			c.patterns = append(c.patterns, pattern)
			c.targets = append(c.targets, nil)
		}
		c.targets[idx] = append(c.targets[idx], domain.TopicMatch{Topic: topic, Sentiment: r.Sentiment})

		if _, ok := seenTopic[topic]; !ok {
			seenTopic[topic] = struct{}{}
			c.topics = append(c.topics, topic)
		}
	}
	slices.Sort(c.topics)

	if len(c.patterns) > 0 {
		anchored := make([]string, len(c.patterns))
		for i, p := range c.patterns {
			anchored[i] = " " + p
		}
		c.matcher = ahocorasick.NewStringMatcher(anchored)
	}
	return c, nil
}

// Classify tokenizes body and returns its topic set.
func (c *Classifier) Classify(body string) []domain.TopicMatch {
	return c.MatchTokens(c.tok.Tokenize(body))
}

// MatchTokens returns at most one match per topic, sorted by topic name.
// When one topic is signalled with different sentiments the strongest wins
// (negative > mixed > positive). Reviews with no match yield nil; callers
// must not invent an "other" topic for them.
func (c *Classifier) MatchTokens(tokens []string) []domain.TopicMatch {
	if c.matcher == nil || len(tokens) == 0 {
		return nil
	}
	// leading space anchors the first token like every other
	hits := c.matcher.MatchThreadSafe([]byte(" " + strings.Join(tokens, " ")))
	if len(hits) == 0 {
		return nil
	}

	best := make(map[string]domain.Sentiment, len(hits))
	for _, h := range hits {
		for _, t := range c.targets[h] {
			if cur, ok := best[t.Topic]; !ok || t.Sentiment.Precedence() > cur.Precedence() {
				best[t.Topic] = t.Sentiment
			}
		}
	}

	out := make([]domain.TopicMatch, 0, len(best))
	for topic, s := range best {
		out = append(out, domain.TopicMatch{Topic: topic, Sentiment: s})
	}
	slices.SortFunc(out, func(a, b domain.TopicMatch) int { return strings.Compare(a.Topic, b.Topic) })
	return out
}

// Topics lists every configured topic name, sorted.
func (c *Classifier) Topics() []string { return slices.Clone(c.topics) }

// PatternCount is the number of distinct normalized keywords.
func (c *Classifier) PatternCount() int { return len(c.patterns) }
