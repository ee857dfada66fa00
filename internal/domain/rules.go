package domain

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
)

func ParseSentiment(s string) (Sentiment, error) {
	switch v := Sentiment(strings.ToLower(strings.TrimSpace(s))); v {
	case SentimentPositive, SentimentNegative, SentimentMixed:
		return v, nil
	}
	return "", NewValidationError("sentiment", "unknown sentiment "+quote(s))
}

func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentMixed
}

// Precedence orders conflicting signals for one topic on one review:
// negative > mixed > positive.
func (s Sentiment) Precedence() int {
	switch s {
	case SentimentNegative:
		return 3
	case SentimentMixed:
		return 2
	case SentimentPositive:
		return 1
	}
	return 0
}

// TopicRule maps a keyword to a topic and the sentiment it signals.
type TopicRule struct {
	Keyword   string    `json:"keyword" yaml:"keyword"`
	Topic     string    `json:"topic" yaml:"topic"`
	Sentiment Sentiment `json:"sentiment" yaml:"sentiment"`
}

// TopicMatch is one (topic, sentiment) pair produced for a single review.
type TopicMatch struct {
	Topic     string    `json:"topic"`
	Sentiment Sentiment `json:"sentiment"`
}
