package analytics

import (
	"cmp"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"review_insights/internal/domain"
)

const (
	DefaultTopWordsLimit    = 10
	DefaultTopVersionsLimit = 5
)

// Config is bound at construction; an Aggregator never changes afterwards.
type Config struct {
	TopicRules []domain.TopicRule
	// StopWords: nil selects DefaultStopWords, an empty slice disables filtering.
	StopWords        []string
	TopWordsLimit    int // 0 selects DefaultTopWordsLimit
	TopVersionsLimit int // 0 selects DefaultTopVersionsLimit
	// KeyIssueTopics restricts the key-issues section to these topics.
	// Empty means every topic with a negative signal.
	KeyIssueTopics []string
}

// Aggregator builds reports. It is immutable and safe for concurrent use.
type Aggregator struct {
	tok         *Tokenizer
	cls         *Classifier
	topWords    int
	topVersions int
	keyIssues   map[string]struct{}
	fingerprint string
}

func New(cfg Config) (*Aggregator, error) {
	if cfg.TopWordsLimit < 0 {
		return nil, domain.NewValidationError("topWordsLimit", "must not be negative")
	}
	if cfg.TopVersionsLimit < 0 {
		return nil, domain.NewValidationError("topVersionsLimit", "must not be negative")
	}
	if cfg.TopWordsLimit == 0 {
		cfg.TopWordsLimit = DefaultTopWordsLimit
	}
	if cfg.TopVersionsLimit == 0 {
		cfg.TopVersionsLimit = DefaultTopVersionsLimit
	}

	tok := NewTokenizer(cfg.StopWords)
	cls, err := NewClassifier(cfg.TopicRules, tok)
	if err != nil {
		return nil, err
	}

	a := &Aggregator{
		tok:         tok,
		cls:         cls,
		topWords:    cfg.TopWordsLimit,
		topVersions: cfg.TopVersionsLimit,
	}
	if len(cfg.KeyIssueTopics) > 0 {
		a.keyIssues = make(map[string]struct{}, len(cfg.KeyIssueTopics))
		for _, t := range cfg.KeyIssueTopics {
			a.keyIssues[strings.TrimSpace(t)] = struct{}{}
		}
	}
	a.fingerprint = fingerprint(cfg, tok)
	return a, nil
}

func (a *Aggregator) Classifier() *Classifier { return a.cls }

// Fingerprint identifies the rule set and limits. Two aggregators with equal
// fingerprints produce identical reports for identical corpora.
func (a *Aggregator) Fingerprint() string { return a.fingerprint }

// per-topic accumulator
type topicTally struct {
	count int
	votes [3]int // indexed by sentimentSlot
}

// Aggregate builds the report for platform from corpus. corpus may hold
// records of both platforms; the other platform only feeds the comparison
// section. An empty platform corpus yields a zeroed report. Unknown
// platforms and invalid records are rejected with *domain.ValidationError.
func (a *Aggregator) Aggregate(corpus []domain.ReviewRecord, platform domain.Platform) (domain.Report, error) {
	if !platform.Valid() {
		return domain.Report{}, domain.NewValidationError("platform", fmt.Sprintf("unknown platform %q", platform))
	}

	var (
		ratingCounts [domain.MaxRating + 1]int
		ratingSum    int
		total        int
		responded    int
		negatives    int
		unclassified int

		otherCount, otherSum int

		topics   = map[string]*topicTally{}
		issues   = map[string]int{}
		words    = map[string]int{}
		versions = map[string]int{}
		months   = map[string][2]int{} // month -> {sum, count}
	)

	for i, r := range corpus {
		if err := r.Validate(); err != nil {
			return domain.Report{}, fmt.Errorf("corpus[%d]: %w", i, err)
		}
		if r.Platform != platform {
			otherCount++
			otherSum += r.Rating
			continue
		}

		total++
		ratingSum += r.Rating
		ratingCounts[r.Rating]++
		if r.DeveloperResponded {
			responded++
		}

		mon := months[r.Month()]
		months[r.Month()] = [2]int{mon[0] + r.Rating, mon[1] + 1}

		tokens := a.tok.Tokenize(r.Body)
		for _, t := range tokens {
			words[t]++
		}

		matches := a.cls.MatchTokens(tokens)
		if len(matches) == 0 {
			unclassified++
		}
		for _, m := range matches {
			tt := topics[m.Topic]
			if tt == nil {
				tt = &topicTally{}
				topics[m.Topic] = tt
			}
			tt.count++
			tt.votes[sentimentSlot(m.Sentiment)]++
		}

		if !r.Negative() {
			continue
		}
		negatives++
		if v := strings.TrimSpace(r.AppVersion); v != "" {
			versions[v]++
		}
		for _, m := range matches {
			if m.Sentiment != domain.SentimentNegative || !a.isKeyIssue(m.Topic) {
				continue
			}
			issues[m.Topic]++
		}
	}

	ownMean := mean(ratingSum, total)
	rep := domain.Report{
		Platform: platform,
		Summary: domain.Summary{
			TotalReviews: total,
			MeanRating:   toFloat(ownMean),
		},
		RatingDistribution: distribution(ratingCounts),
		Topics:             topicSection(topics, total, unclassified),
		TopWords:           topWords(words, a.topWords),
		KeyIssues:          keyIssueSection(issues, negatives),
		RatingTrend:        trend(months),
		VersionIssues:      versionIssues(versions, a.topVersions),
		DeveloperResponse: domain.DeveloperResponse{
			RespondedCount: responded,
			TotalCount:     total,
			RatePercent:    percent(responded, total),
		},
	}

	if total > 0 && otherCount > 0 {
		otherMean := mean(otherSum, otherCount)
		rep.PlatformComparison = &domain.PlatformComparison{
			PlatformA: platform,
			MeanA:     toFloat(ownMean),
			CountA:    total,
			PlatformB: platform.Other(),
			MeanB:     toFloat(otherMean),
			CountB:    otherCount,
			Delta:     toFloat(otherMean.Sub(ownMean).Round(2)),
		}
	}
	return rep, nil
}

func (a *Aggregator) isKeyIssue(topic string) bool {
	if a.keyIssues == nil {
		return true
	}
	_, ok := a.keyIssues[topic]
	return ok
}

func distribution(counts [domain.MaxRating + 1]int) domain.RatingDistribution {
	ordered := make([]int, 0, domain.MaxRating)
	for r := domain.MaxRating; r >= domain.MinRating; r-- {
		ordered = append(ordered, counts[r])
	}
	pcts := apportion(ordered)

	d := domain.RatingDistribution{Buckets: make([]domain.RatingBucket, 0, domain.MaxRating)}
	for i, r := 0, domain.MaxRating; r >= domain.MinRating; i, r = i+1, r-1 {
		d.Buckets = append(d.Buckets, domain.RatingBucket{
			Rating:     r,
			Label:      ratingLabel(r),
			Count:      counts[r],
			Percentage: pcts[i],
		})
	}

	// highest count; ascending scan with strict > keeps the lower rating on ties
	best := 0
	for r := domain.MinRating; r <= domain.MaxRating; r++ {
		if counts[r] > 0 && (best == 0 || counts[r] > counts[best]) {
			best = r
		}
	}
	if best > 0 {
		d.MostCommon = ratingLabel(best)
		d.MostCommonRating = best
	}
	return d
}

func ratingLabel(r int) string {
	if r == 1 {
		return "1 Star"
	}
	return strconv.Itoa(r) + " Stars"
}

func topicSection(topics map[string]*topicTally, total, unclassified int) domain.TopicSection {
	items := make([]domain.TopicCount, 0, len(topics))
	for name, tt := range topics {
		items = append(items, domain.TopicCount{
			Name:       name,
			Count:      tt.count,
			Percentage: percent(tt.count, total),
			Sentiment:  majority(tt.votes),
		})
	}
	slices.SortFunc(items, func(a, b domain.TopicCount) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return domain.TopicSection{Items: items, UnclassifiedCount: unclassified}
}

func keyIssueSection(issues map[string]int, negatives int) domain.KeyIssueSection {
	items := make([]domain.IssueCount, 0, len(issues))
	for name, n := range issues {
		items = append(items, domain.IssueCount{Name: name, Count: n, Percentage: percent(n, negatives)})
	}
	slices.SortFunc(items, func(a, b domain.IssueCount) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return domain.KeyIssueSection{Items: items, NegativeReviews: negatives}
}

func topWords(words map[string]int, limit int) []domain.WordCount {
	out := make([]domain.WordCount, 0, len(words))
	for w, n := range words {
		out = append(out, domain.WordCount{Name: w, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.WordCount) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func trend(months map[string][2]int) []domain.TrendPoint {
	out := make([]domain.TrendPoint, 0, len(months))
	for key, m := range months {
		out = append(out, domain.TrendPoint{
			Month:      key,
			Label:      monthLabel(key),
			MeanRating: toFloat(mean(m[0], m[1])),
			Count:      m[1],
		})
	}
	// "2006-01" sorts chronologically as a string
	slices.SortFunc(out, func(a, b domain.TrendPoint) int { return strings.Compare(a.Month, b.Month) })
	return out
}

func monthLabel(key string) string {
	t, err := time.Parse(domain.MonthLayout, key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2006")
}

func versionIssues(versions map[string]int, limit int) []domain.VersionCount {
	out := make([]domain.VersionCount, 0, len(versions))
	for v, n := range versions {
		out = append(out, domain.VersionCount{Name: v, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.VersionCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		if c := compareVersions(a.Name, b.Name); c != 0 {
			return -c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byCountThenName(ac, bc int, an, bn string) int {
	if ac != bc {
		return cmp.Compare(bc, ac)
	}
	return strings.Compare(an, bn)
}

func sentimentSlot(s domain.Sentiment) int {
	switch s {
	case domain.SentimentNegative:
		return 0
	case domain.SentimentMixed:
		return 1
	default:
		return 2
	}
}

var slotSentiment = [3]domain.Sentiment{domain.SentimentNegative, domain.SentimentMixed, domain.SentimentPositive}

// majority returns the sentiment with the most votes. A tie for the top is
// reported as mixed.
func majority(votes [3]int) domain.Sentiment {
	best, winners := 0, 0
	var s domain.Sentiment
	for i, n := range votes {
		switch {
		case n > best:
			best, winners, s = n, 1, slotSentiment[i]
		case n == best && n > 0:
			winners++
		}
	}
	if winners != 1 {
		return domain.SentimentMixed
	}
	return s
}

// compareVersions orders dotted version strings numerically part by part
// ("14.19.0" > "14.9.2"). A leading "v" is ignored. Non-numeric parts
// compare as strings and sort below numeric ones.
func compareVersions(a, b string) int {
	ap := strings.Split(strings.TrimPrefix(strings.ToLower(a), "v"), ".")
	bp := strings.Split(strings.TrimPrefix(strings.ToLower(b), "v"), ".")
	for i := 0; i < max(len(ap), len(bp)); i++ {
		x, y := "0", "0"
		if i < len(ap) {
			x = ap[i]
		}
		if i < len(bp) {
			y = bp[i]
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if c := cmp.Compare(xn, yn); c != 0 {
				return c
			}
		case xerr == nil:
			return 1
		case yerr == nil:
			return -1
		default:
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return 0
}

func fingerprint(cfg Config, tok *Tokenizer) string {
	h := sha1.New()
	fmt.Fprintf(h, "words=%d;versions=%d\n", cfg.TopWordsLimit, cfg.TopVersionsLimit)
	for _, r := range cfg.TopicRules {
		fmt.Fprintf(h, "rule=%q|%q|%s\n", r.Keyword, r.Topic, r.Sentiment)
	}
	stop := make([]string, 0, len(tok.stop))
	for w := range tok.stop {
		stop = append(stop, w)
	}
	slices.Sort(stop)
	fmt.Fprintf(h, "stop=%s\n", strings.Join(stop, ","))
	keys := slices.Clone(cfg.KeyIssueTopics)
	slices.Sort(keys)
	fmt.Fprintf(h, "issues=%s\n", strings.Join(keys, ","))
	return hex.EncodeToString(h.Sum(nil))
}
