package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"review_insights/internal/analytics"
	"review_insights/internal/domain"
)

//go:embed default_rules.yaml
var defaultRules []byte

// RuleSet is the YAML rule file: topics with their keywords, an optional
// stop-word override and the curated key-issue topics.
type RuleSet struct {
	StopWords      []string      `yaml:"stop_words"`
	KeyIssueTopics []string      `yaml:"key_issue_topics"`
	Topics         []TopicConfig `yaml:"topics"`
}

type TopicConfig struct {
	Name      string   `yaml:"name"`
	Sentiment string   `yaml:"sentiment"`
	Keywords  []string `yaml:"keywords"`
}

// LoadRules reads the rule set at path. An empty path selects the built-in
// rules. Unknown keys are rejected so a typo does not silently drop a topic.
func LoadRules(path string) (RuleSet, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return RuleSet{}, fmt.Errorf("read rules: %w", err)
		}
		data = b
	}
	return ParseRules(data)
}

func ParseRules(data []byte) (RuleSet, error) {
	var rs RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := rs.validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

func (rs RuleSet) validate() error {
	known := make(map[string]struct{}, len(rs.Topics))
	for i, t := range rs.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].name", i), "must not be empty")
		}
		if _, err := domain.ParseSentiment(t.Sentiment); err != nil {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].sentiment", i), fmt.Sprintf("unknown sentiment %q", t.Sentiment))
		}
		if len(t.Keywords) == 0 {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].keywords", i), "must not be empty")
		}
		known[strings.TrimSpace(t.Name)] = struct{}{}
	}
	for i, k := range rs.KeyIssueTopics {
		if _, ok := known[strings.TrimSpace(k)]; !ok {
			return domain.NewValidationError(fmt.Sprintf("key_issue_topics[%d]", i), fmt.Sprintf("%q is not a configured topic", k))
		}
	}
	return nil
}

// TopicRules flattens topics into one rule per keyword.
func (rs RuleSet) TopicRules() []domain.TopicRule {
	var out []domain.TopicRule
	for _, t := range rs.Topics {
		s, _ := domain.ParseSentiment(t.Sentiment)
		for _, k := range t.Keywords {
			out = append(out, domain.TopicRule{Keyword: k, Topic: strings.TrimSpace(t.Name), Sentiment: s})
		}
	}
	return out
}

func (rs RuleSet) AnalyticsConfig(topWords, topVersions int) analytics.Config {
	return analytics.Config{
		TopicRules:       rs.TopicRules(),
		StopWords:        rs.StopWords,
		TopWordsLimit:    topWords,
		TopVersionsLimit: topVersions,
		KeyIssueTopics:   rs.KeyIssueTopics,
	}
}
