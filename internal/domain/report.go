package domain

// Report is the frozen output consumed by the presentation layer.
// It holds no reference back to the corpus it was built from.
type Report struct {
	Platform           Platform            `json:"platform"`
	Summary            Summary             `json:"summary"`
	RatingDistribution RatingDistribution  `json:"ratingDistribution"`
	Topics             TopicSection        `json:"topics"`
	TopWords           []WordCount         `json:"topWords"`
	KeyIssues          KeyIssueSection     `json:"keyIssues"`
	RatingTrend        []TrendPoint        `json:"ratingTrend"`
	VersionIssues      []VersionCount      `json:"versionIssues"`
	DeveloperResponse  DeveloperResponse   `json:"developerResponse"`
	PlatformComparison *PlatformComparison `json:"platformComparison,omitempty"`
}

type Summary struct {
	TotalReviews int     `json:"totalReviews"`
	MeanRating   float64 `json:"meanRating"`
}

type RatingBucket struct {
	Rating     int     `json:"rating"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type RatingDistribution struct {
	Buckets          []RatingBucket `json:"buckets"` // 5 stars first
	MostCommon       string         `json:"mostCommon"`
	MostCommonRating int            `json:"mostCommonRating"`
}

type TopicCount struct {
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	Percentage float64   `json:"percentage"` // share of all platform reviews
	Sentiment  Sentiment `json:"sentiment"`
}

// TopicSection lists classified topics. Reviews that matched no rule are
// not assigned a bucket; they are only counted in UnclassifiedCount.
type TopicSection struct {
	Items             []TopicCount `json:"items"`
	UnclassifiedCount int          `json:"unclassifiedCount"`
}

type WordCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type IssueCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // share of negative reviews
}

type KeyIssueSection struct {
	Items           []IssueCount `json:"items"`
	NegativeReviews int          `json:"negativeReviews"`
}

type TrendPoint struct {
	Month      string  `json:"month"` // 2006-01
	Label      string  `json:"label"` // Jan 2006
	MeanRating float64 `json:"meanRating"`
	Count      int     `json:"count"`
}

type VersionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type DeveloperResponse struct {
	RespondedCount int     `json:"respondedCount"`
	TotalCount     int     `json:"totalCount"`
	RatePercent    float64 `json:"ratePercent"`
}

// PlatformComparison uses A for the report's own platform and B for the other.
// Delta is MeanB - MeanA.
type PlatformComparison struct {
	PlatformA Platform `json:"platformA"`
	MeanA     float64  `json:"meanA"`
	CountA    int      `json:"countA"`
	PlatformB Platform `json:"platformB"`
	MeanB     float64  `json:"meanB"`
	CountB    int      `json:"countB"`
	Delta     float64  `json:"delta"`
}
