package httpserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "review_insights/internal/adapters/http_server"
	"review_insights/internal/analytics"
	"review_insights/internal/app"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
)

func newTestServer(t *testing.T, rps float64, burst int) (http.Handler, *corpus.Store) {
	t.Helper()
	return newServerWithOptions(t, httpserver.Options{IngestRate: rps, IngestBurst: burst})
}

func newServerWithOptions(t *testing.T, opts httpserver.Options) (http.Handler, *corpus.Store) {
	t.Helper()
	agg, err := analytics.New(analytics.Config{
		TopicRules: []domain.TopicRule{
			{Keyword: "crash", Topic: "Crashes", Sentiment: domain.SentimentNegative},
			{Keyword: "class", Topic: "Classes", Sentiment: domain.SentimentPositive},
		},
	})
	require.NoError(t, err)

	store := corpus.NewStore()
	srv := httpserver.New(opts)
	srv.MountHandlers(&httpserver.Handlers{
		R: app.NewReportService(store, agg, nil, time.Minute),
		I: app.NewIngestionService(store, nil, nil),
	})
	return srv.Mux(), store
}

func do(h http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	return doFrom(h, "", method, target, body, hdr)
}

// doFrom sends the request from remote (host:port); empty keeps the
// httptest default.
func doFrom(h http.Handler, remote, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, s *corpus.Store, p domain.Platform, id string, rating int, body string) {
	t.Helper()
	require.NoError(t, s.Add(domain.ReviewRecord{
		ID: id, Platform: p, Rating: rating, Body: body,
		Timestamp: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}))
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, 0, 0)
	rec := do(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGetReport_ETagRoundTrip(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	seed(t, store, domain.PlatformAndroid, "a1", 1, "crash on start")
	seed(t, store, domain.PlatformAndroid, "a2", 5, "love the classes")

	rec := do(h, http.MethodGet, "/v1/reports/android", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"`), etag)

	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, domain.PlatformAndroid, rep.Platform)
	assert.Equal(t, 2, rep.Summary.TotalReviews)
	assert.Equal(t, 3.0, rep.Summary.MeanRating)
	assert.Nil(t, rep.PlatformComparison)

	rec = do(h, http.MethodGet, "/v1/reports/android", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, etag, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Body.Bytes())

	seed(t, store, domain.PlatformAndroid, "a3", 4, "")
	rec = do(h, http.MethodGet, "/v1/reports/android", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}

func TestGetReport_PlatformAlias(t *testing.T) {
	h, _ := newTestServer(t, 0, 0)
	rec := do(h, http.MethodGet, "/v1/reports/appstore", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, domain.PlatformIOS, rep.Platform)
	assert.Equal(t, 0, rep.Summary.TotalReviews)
	assert.NotNil(t, rep.TopWords)
}

func TestGetReport_UnknownPlatform(t *testing.T) {
	h, _ := newTestServer(t, 0, 0)
	rec := do(h, http.MethodGet, "/v1/reports/windows-phone", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestListReports(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	seed(t, store, domain.PlatformIOS, "i1", 4, "")
	seed(t, store, domain.PlatformAndroid, "a1", 2, "crash")

	rec := do(h, http.MethodGet, "/v1/reports", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Reports []domain.Report `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Reports, 2)
	assert.Equal(t, domain.PlatformIOS, out.Reports[0].Platform)
	assert.Equal(t, domain.PlatformAndroid, out.Reports[1].Platform)
	require.NotNil(t, out.Reports[0].PlatformComparison)
	assert.Equal(t, -2.0, out.Reports[0].PlatformComparison.Delta)
}

func TestPostReview(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	body := `{"id":"r1","platform":"ios","rating":5,"body":"Love it","timestamp":"2025-01-02T03:04:05+02:00"}`

	rec := do(h, http.MethodPost, "/v1/reviews", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/reports/ios", rec.Header().Get("Location"))
	assert.True(t, store.Has(domain.PlatformIOS, "r1"))

	all, err := store.All(domain.PlatformIOS)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, all[0].Timestamp.Location())

	rec = do(h, http.MethodPost, "/v1/reviews", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostReview_PlatformFromQuery(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	rec := do(h, http.MethodPost, "/v1/reviews?platform=googleplay",
		`{"id":"g1","rating":1,"body":"","timestamp":"2025-01-02T03:04:05Z"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, store.Has(domain.PlatformAndroid, "g1"))
}

func TestPostReview_Rejects(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	cases := map[string]string{
		"malformed json": `{"id":`,
		"unknown field":  `{"id":"x","platform":"ios","rating":3,"stars":3,"timestamp":"2025-01-02T03:04:05Z"}`,
		"bad rating":     `{"id":"x","platform":"ios","rating":0,"timestamp":"2025-01-02T03:04:05Z"}`,
		"no timestamp":   `{"id":"x","platform":"ios","rating":3}`,
		"no platform":    `{"id":"x","rating":3,"timestamp":"2025-01-02T03:04:05Z"}`,
		"empty id":       `{"id":"","platform":"ios","rating":3,"timestamp":"2025-01-02T03:04:05Z"}`,
	}
	for name, body := range cases {
		rec := do(h, http.MethodPost, "/v1/reviews", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), name)
	}
	assert.Equal(t, 0, store.Len(domain.PlatformIOS))
}

func TestImportReviews(t *testing.T) {
	h, store := newTestServer(t, 0, 0)
	doc := `{"reviews": [
		{"reviewId": "gp-1", "content": "crashes", "score": 1, "at": "2025-03-14T21:05:11"},
		{"reviewId": "gp-2", "content": "great classes", "score": 5, "at": "2025-03-15T08:00:00"},
		{"reviewId": "gp-3", "content": "no rating", "at": "2025-03-15T08:00:00"},
		{"reviewId": "gp-1", "content": "crashes", "score": 1, "at": "2025-03-14T21:05:11"}
	]}`

	rec := do(h, http.MethodPost, "/v1/reviews/import?platform=googleplay", doc, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, app.ImportResult{Accepted: 2, Duplicates: 1, Rejected: 1}, res)
	assert.Equal(t, 2, store.Len(domain.PlatformAndroid))
}

func TestImportReviews_BadInput(t *testing.T) {
	h, _ := newTestServer(t, 0, 0)

	rec := do(h, http.MethodPost, "/v1/reviews/import", `[]`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/v1/reviews/import?platform=ios", `{"items": []}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func reviewBody(id string) string {
	return `{"id":"` + id + `","platform":"ios","rating":4,"timestamp":"2025-01-02T03:04:05Z"}`
}

func TestRateLimit_WriteEndpoints(t *testing.T) {
	h, _ := newTestServer(t, 0.001, 2)
	alice, bob := "203.0.113.7:4711", "203.0.113.8:4711"

	assert.Equal(t, http.StatusCreated, doFrom(h, alice, http.MethodPost, "/v1/reviews", reviewBody("1"), nil).Code)
	assert.Equal(t, http.StatusCreated, doFrom(h, alice, http.MethodPost, "/v1/reviews", reviewBody("2"), nil).Code)

	rec := doFrom(h, alice, http.MethodPost, "/v1/reviews", reviewBody("3"), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other clients and read endpoints are unaffected
	assert.Equal(t, http.StatusCreated, doFrom(h, bob, http.MethodPost, "/v1/reviews", reviewBody("3"), nil).Code)
	assert.Equal(t, http.StatusOK, doFrom(h, alice, http.MethodGet, "/v1/reports/ios", "", nil).Code)
}

func TestRateLimit_IgnoresForwardingHeadersByDefault(t *testing.T) {
	h, _ := newTestServer(t, 0.001, 2)
	const client = "198.51.100.20:5000"

	for i, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4"} {
		hdr := map[string]string{"X-Forwarded-For": xff, "X-Real-IP": xff}
		rec := doFrom(h, client, http.MethodPost, "/v1/reviews", reviewBody(xff), hdr)
		if i < 2 {
			assert.Equal(t, http.StatusCreated, rec.Code, xff)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code, xff)
		}
	}
}

func TestRateLimit_TrustProxyKeysOnForwardedFor(t *testing.T) {
	h, _ := newServerWithOptions(t, httpserver.Options{IngestRate: 0.001, IngestBurst: 1, TrustProxy: true})
	const proxy = "10.0.0.1:443"
	alice := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	bob := map[string]string{"X-Forwarded-For": "203.0.113.8"}

	assert.Equal(t, http.StatusCreated, doFrom(h, proxy, http.MethodPost, "/v1/reviews", reviewBody("1"), alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(h, proxy, http.MethodPost, "/v1/reviews", reviewBody("2"), alice).Code)
	assert.Equal(t, http.StatusCreated, doFrom(h, proxy, http.MethodPost, "/v1/reviews", reviewBody("3"), bob).Code)
}
