package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Platforms lists every supported store, in report order.
var Platforms = []Platform{PlatformIOS, PlatformAndroid}

var platformAliases = map[string]Platform{
	"ios":         PlatformIOS,
	"appstore":    PlatformIOS,
	"app_store":   PlatformIOS,
	"android":     PlatformAndroid,
	"googleplay":  PlatformAndroid,
	"google_play": PlatformAndroid,
}

// ParsePlatform accepts the canonical names plus the store names used by
// the scraper exports ("appstore", "googleplay").
func ParsePlatform(s string) (Platform, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return "", NewValidationError("platform", "unknown platform "+quote(s))
}

func (p Platform) Valid() bool { return p == PlatformIOS || p == PlatformAndroid }

// Other returns the opposite store; used for cross-platform comparison.
func (p Platform) Other() Platform {
	if p == PlatformIOS {
		return PlatformAndroid
	}
	return PlatformIOS
}

// ReviewRecord is created once at ingestion and never mutated.
type ReviewRecord struct {
	ID                 string    `json:"id"`
	Platform           Platform  `json:"platform"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title,omitempty"` // App Store only; not analysed
	Body               string    `json:"body"`
	Timestamp          time.Time `json:"timestamp"`
	AppVersion         string    `json:"appVersion,omitempty"`
	DeveloperResponded bool      `json:"developerResponded"`
}

const (
	MinRating = 1
	MaxRating = 5
	// NegativeMaxRating is the highest rating still counted as a negative review.
	NegativeMaxRating = 2

	// Column widths of the reviews table, in characters.
	MaxIDLength         = 191
	MaxAppVersionLength = 64
)

// Validate rejects records that must never reach aggregation.
// An empty body is allowed.
func (r ReviewRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	if utf8.RuneCountInString(r.ID) > MaxIDLength {
		return NewValidationError("id", fmt.Sprintf("longer than %d characters", MaxIDLength))
	}
	if !r.Platform.Valid() {
		return NewValidationError("platform", "unknown platform "+quote(string(r.Platform)))
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return NewValidationError("rating", "must be between 1 and 5")
	}
	if r.Timestamp.IsZero() {
		return NewValidationError("timestamp", "missing or malformed date")
	}
	if utf8.RuneCountInString(r.AppVersion) > MaxAppVersionLength {
		return NewValidationError("appVersion", fmt.Sprintf("longer than %d characters", MaxAppVersionLength))
	}
	return nil
}

func (r ReviewRecord) Negative() bool { return r.Rating <= NegativeMaxRating }

// Month is the UTC calendar month of the review, formatted "2006-01".
func (r ReviewRecord) Month() string { return r.Timestamp.UTC().Format(MonthLayout) }

const MonthLayout = "2006-01"

func quote(s string) string { return `"` + s + `"` }
