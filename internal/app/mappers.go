package app

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"review_insights/internal/domain"
)

/********** alias registry (single source of truth) **********/

// Google Play exports use reviewId/content/score/at/reviewCreatedVersion;
// App Store exports use id/title/content/rating/date/version, or the raw
// StoreFront shape with everything under "attributes".
var reviewAliases = map[string][]string{
	"id":      {"reviewId", "review_id", "id"},
	"title":   {"title", "attributes.title"},
	"body":    {"content", "review", "text", "body", "attributes.review"},
	"rating":  {"score", "rating", "attributes.rating"},
	"date":    {"at", "date", "timestamp", "created_at", "attributes.date"},
	"version": {"reviewCreatedVersion", "appVersion", "version", "attributes.storeSortVersion"},
	"reply": {
		"replyContent", "developerResponse", "developerResponse.body",
		"developer_response", "attributes.developerResponse", "attributes.developerResponse.body",
	},
}

// versions the scrapers emit when none is known
var noVersion = map[string]struct{}{"": {}, "n/a": {}, "na": {}, "none": {}, "null": {}, "unknown": {}}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "". Numbers are formatted so numeric
// ids survive.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range reviewAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// hasAnyAlias: any alias holds a non-empty value (string, object, ...).
func hasAnyAlias(m map[string]any, key string) bool {
	for _, p := range reviewAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return true
			}
		case map[string]any:
			if len(v) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// getFloatFlexible: number from several paths (float64/int/string like "4,0").
func getFloatFlexible(m map[string]any, paths ...string) (float64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.NewValidationError("timestamp", fmt.Sprintf("unrecognized date %q", s))
}

/********** review mapper **********/

// MapReview converts one scraper export object into a validated record.
// Missing ids are synthesized from the review content so re-imports of the
// same file stay idempotent.
func MapReview(p domain.Platform, raw map[string]any) (domain.ReviewRecord, error) {
	if !p.Valid() {
		return domain.ReviewRecord{}, domain.NewValidationError("platform", fmt.Sprintf("unknown platform %q", p))
	}
	rv := domain.ReviewRecord{
		Platform: p,
		Title:    firstNonEmptyAlias(raw, "title"),
		Body:     firstNonEmptyAlias(raw, "body"),
	}

	f, ok := getFloatFlexible(raw, reviewAliases["rating"]...)
	if !ok {
		return domain.ReviewRecord{}, domain.NewValidationError("rating", "missing")
	}
	if f != math.Trunc(f) {
		return domain.ReviewRecord{}, domain.NewValidationError("rating", fmt.Sprintf("%v is not a whole star count", f))
	}
	rv.Rating = int(f)

	date := firstNonEmptyAlias(raw, "date")
	if date == "" {
		return domain.ReviewRecord{}, domain.NewValidationError("timestamp", "missing")
	}
	ts, err := parseDate(date)
	if err != nil {
		return domain.ReviewRecord{}, err
	}
	rv.Timestamp = ts

	if v := firstNonEmptyAlias(raw, "version"); !isNoVersion(v) {
		rv.AppVersion = v
	}
	rv.DeveloperResponded = hasAnyAlias(raw, "reply")

	// SourceID → prefer explicit; else synthesize stable hash.
	if id := firstNonEmptyAlias(raw, "id"); id != "" {
		rv.ID = id
	} else {
		sig := strings.Join([]string{string(p), rv.Title, rv.Body, strconv.Itoa(rv.Rating), rv.Timestamp.Format(time.RFC3339)}, "|")
		sum := sha1.Sum([]byte(sig))
		rv.ID = hex.EncodeToString(sum[:])
	}

	if err := rv.Validate(); err != nil {
		return domain.ReviewRecord{}, err
	}
	return rv, nil
}

func isNoVersion(v string) bool {
	_, ok := noVersion[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// ExtractReviewPayloads accepts either a bare JSON array of reviews or an
// export document with a "reviews" array.
func ExtractReviewPayloads(doc []byte) ([]map[string]any, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, domain.NewValidationError("document", "empty")
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	if doc[0] == '[' {
		var items []map[string]any
		if err := dec.Decode(&items); err != nil {
			return nil, domain.NewValidationError("document", err.Error())
		}
		return items, nil
	}

	var wrapped struct {
		Reviews []map[string]any `json:"reviews"`
	}
	if err := dec.Decode(&wrapped); err != nil {
		return nil, domain.NewValidationError("document", err.Error())
	}
	if wrapped.Reviews == nil {
		return nil, domain.NewValidationError("document", `no "reviews" array`)
	}
	return wrapped.Reviews, nil
}
