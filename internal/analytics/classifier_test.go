package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_insights/internal/analytics"
	"review_insights/internal/domain"
)

func rule(keyword, topic string, s domain.Sentiment) domain.TopicRule {
	return domain.TopicRule{Keyword: keyword, Topic: topic, Sentiment: s}
}

func newClassifier(t *testing.T, rules ...domain.TopicRule) *analytics.Classifier {
	t.Helper()
	c, err := analytics.NewClassifier(rules, analytics.NewTokenizer(nil))
	require.NoError(t, err)
	return c
}

func TestClassify_SubstringAndCompoundKeywords(t *testing.T) {
	c := newClassifier(t,
		rule("crash", "App Crashes", domain.SentimentNegative),
		rule("cant-login", "Login Problems", domain.SentimentNegative),
	)

	got := c.Classify("It crashes constantly and I can't login at all!")

	assert.Equal(t, []domain.TopicMatch{
		{Topic: "App Crashes", Sentiment: domain.SentimentNegative},
		{Topic: "Login Problems", Sentiment: domain.SentimentNegative},
	}, got)
}

func TestClassify_KeywordsAnchorAtTokenStart(t *testing.T) {
	c := newClassifier(t,
		rule("helpful", "App Functionality", domain.SentimentPositive),
		rule("fast", "App Performance", domain.SentimentPositive),
		rule("bug", "Technical Issues", domain.SentimentNegative),
		rule("crash", "App Crashes", domain.SentimentNegative),
	)

	for _, body := range []string{
		"Totally unhelpful support staff",
		"I log my breakfast here",
		"the debug menu is visible",
	} {
		assert.Nil(t, c.Classify(body), body)
	}

	assert.Equal(t, []domain.TopicMatch{
		{Topic: "App Crashes", Sentiment: domain.SentimentNegative},
		{Topic: "App Functionality", Sentiment: domain.SentimentPositive},
	}, c.Classify("Helpful at first, then crashing"))
	assert.Equal(t, []domain.TopicMatch{
		{Topic: "Technical Issues", Sentiment: domain.SentimentNegative},
	}, c.Classify("bugs everywhere"))
}

func TestClassify_OneMatchPerTopic(t *testing.T) {
	c := newClassifier(t,
		rule("crash", "App Crashes", domain.SentimentNegative),
		rule("freezes", "App Crashes", domain.SentimentNegative),
	)

	got := c.Classify("crash, crash, then it freezes and crashes again")

	assert.Len(t, got, 1)
	assert.Equal(t, "App Crashes", got[0].Topic)
}

func TestClassify_SentimentPrecedence(t *testing.T) {
	c := newClassifier(t,
		rule("fast", "App Performance", domain.SentimentPositive),
		rule("sometimes slow", "App Performance", domain.SentimentMixed),
		rule("laggy", "App Performance", domain.SentimentNegative),
	)

	cases := []struct {
		body string
		want domain.Sentiment
	}{
		{"so fast", domain.SentimentPositive},
		{"fast but sometimes slow", domain.SentimentMixed},
		{"fast, sometimes slow, mostly laggy", domain.SentimentNegative},
		{"laggy yet fast", domain.SentimentNegative},
	}
	for _, tc := range cases {
		got := c.Classify(tc.body)
		require.Len(t, got, 1, tc.body)
		assert.Equal(t, tc.want, got[0].Sentiment, tc.body)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := newClassifier(t, rule("crash", "App Crashes", domain.SentimentNegative))

	assert.Nil(t, c.Classify("works great"))
	assert.Nil(t, c.Classify(""))
}

func TestClassify_EmptyRuleSet(t *testing.T) {
	c := newClassifier(t)

	assert.Nil(t, c.Classify("anything at all"))
	assert.Empty(t, c.Topics())
}

func TestNewClassifier_RejectsBadRules(t *testing.T) {
	tok := analytics.NewTokenizer(nil)
	bad := []domain.TopicRule{
		rule("crash", "  ", domain.SentimentNegative),
		rule("crash", "App Crashes", "angry"),
		rule("the", "App Crashes", domain.SentimentNegative),
		rule("!!", "App Crashes", domain.SentimentNegative),
	}
	for _, r := range bad {
		_, err := analytics.NewClassifier([]domain.TopicRule{r}, tok)
		assert.True(t, domain.IsValidation(err), "rule %+v: %v", r, err)
	}
}

func TestClassifier_TopicsAndPatterns(t *testing.T) {
	c := newClassifier(t,
		rule("login", "Login Problems", domain.SentimentNegative),
		rule("Login!", "Login Problems", domain.SentimentNegative),
		rule("crash", "App Crashes", domain.SentimentNegative),
	)

	assert.Equal(t, []string{"App Crashes", "Login Problems"}, c.Topics())
	assert.Equal(t, 2, c.PatternCount())
}
