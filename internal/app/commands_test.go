package app_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"review_insights/internal/app"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
)

func TestIngest_PersistsAddsAndInvalidates(t *testing.T) {
	store, repo, cache := corpus.NewStore(), &fakeRepo{}, &fakeCache{}
	ing := app.NewIngestionService(store, repo, cache)

	if err := ing.Ingest(context.Background(), rec(domain.PlatformIOS, "r1", 5, "love it")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !store.Has(domain.PlatformIOS, "r1") || len(repo.rows[domain.PlatformIOS]) != 1 {
		t.Fatalf("record not stored: store=%v repo=%+v", store.Len(domain.PlatformIOS), repo.rows)
	}
	if !slices.Equal(cache.dels, []string{"report:ios", "report:android"}) {
		t.Fatalf("unexpected invalidations: %v", cache.dels)
	}
}

func TestIngest_RejectsInvalid(t *testing.T) {
	store, repo := corpus.NewStore(), &fakeRepo{}
	ing := app.NewIngestionService(store, repo, nil)

	bad := rec(domain.PlatformIOS, "r1", 9, "x")
	if err := ing.Ingest(context.Background(), bad); !domain.IsValidation(err) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if repo.inserts != 0 || store.Len(domain.PlatformIOS) != 0 {
		t.Fatalf("invalid record leaked")
	}
}

func TestIngest_Duplicates(t *testing.T) {
	store, repo := corpus.NewStore(), &fakeRepo{}
	ing := app.NewIngestionService(store, repo, nil)
	ctx := context.Background()

	r := rec(domain.PlatformAndroid, "dup", 3, "ok")
	if err := ing.Ingest(ctx, r); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := ing.Ingest(ctx, r); !domain.IsDuplicate(err) {
		t.Fatalf("want DuplicateIDError, got %v", err)
	}
	if repo.inserts != 1 {
		t.Fatalf("store fast path should skip the database, got %d inserts", repo.inserts)
	}

	// known to the database only, e.g. written by another replica
	other := rec(domain.PlatformAndroid, "elsewhere", 3, "ok")
	repo.rows[domain.PlatformAndroid] = append(repo.rows[domain.PlatformAndroid], other)
	if err := ing.Ingest(ctx, other); !domain.IsDuplicate(err) {
		t.Fatalf("want DuplicateIDError from repo, got %v", err)
	}
	if store.Has(domain.PlatformAndroid, "elsewhere") {
		t.Fatalf("database duplicate must not reach the store")
	}
}

func TestIngest_RepoFailure(t *testing.T) {
	store := corpus.NewStore()
	boom := errors.New("connection reset")
	ing := app.NewIngestionService(store, &fakeRepo{insertErr: boom}, nil)

	err := ing.Ingest(context.Background(), rec(domain.PlatformIOS, "r1", 4, "fine"))
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped repo error, got %v", err)
	}
	if store.Len(domain.PlatformIOS) != 0 {
		t.Fatalf("record added although persistence failed")
	}
}

func TestImport_Tally(t *testing.T) {
	store := corpus.NewStore()
	ing := app.NewIngestionService(store, &fakeRepo{}, &fakeCache{})

	payloads := []map[string]any{
		{"reviewId": "gp-1", "content": "Crashes on start", "score": 1.0, "at": "2025-01-03T08:00:00"},
		{"reviewId": "gp-2", "content": "Love it", "score": 5.0, "at": "2025-01-04T08:00:00"},
		{"reviewId": "gp-1", "content": "Crashes on start", "score": 1.0, "at": "2025-01-03T08:00:00"},
		{"reviewId": "gp-3", "content": "no stars", "at": "2025-01-05T08:00:00"},
		{"reviewId": "gp-4", "content": "bad date", "score": 2.0, "at": "yesterday"},
		{"reviewId": "gp-5", "content": "too many", "score": 7.0, "at": "2025-01-05"},
	}

	res, err := ing.Import(context.Background(), domain.PlatformAndroid, payloads)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	want := app.ImportResult{Accepted: 2, Duplicates: 1, Rejected: 3}
	if res != want {
		t.Fatalf("want %+v, got %+v", want, res)
	}
	if store.Len(domain.PlatformAndroid) != 2 {
		t.Fatalf("unexpected store size %d", store.Len(domain.PlatformAndroid))
	}
}

// narrowRepo rejects one id the way MySQL rejects a value wider than its column.
type narrowRepo struct {
	fakeRepo
	reject string
}

func (n *narrowRepo) InsertReview(ctx context.Context, r domain.ReviewRecord) error {
	if r.ID == n.reject {
		return domain.NewValidationError("review", "Data too long for column 'source_id' at row 1")
	}
	return n.fakeRepo.InsertReview(ctx, r)
}

func TestImport_OverlongRecordsRejectedIndividually(t *testing.T) {
	store := corpus.NewStore()
	repo := &narrowRepo{reject: "gp-wide"}
	ing := app.NewIngestionService(store, repo, nil)

	payloads := []map[string]any{
		{"reviewId": strings.Repeat("x", 300), "content": "long id", "score": 2.0, "at": "2025-01-03T08:00:00"},
		{"reviewId": "gp-wide", "content": "refused by the database", "score": 4.0, "at": "2025-01-03T08:00:00"},
		{"reviewId": "gp-ok", "content": "fine", "score": 5.0, "at": "2025-01-04T08:00:00"},
	}

	res, err := ing.Import(context.Background(), domain.PlatformAndroid, payloads)
	if err != nil {
		t.Fatalf("import must not abort: %v", err)
	}
	want := app.ImportResult{Accepted: 1, Rejected: 2}
	if res != want {
		t.Fatalf("want %+v, got %+v", want, res)
	}
	if !store.Has(domain.PlatformAndroid, "gp-ok") || store.Has(domain.PlatformAndroid, "gp-wide") {
		t.Fatalf("unexpected store contents")
	}
	if repo.inserts != 1 {
		t.Fatalf("only gp-ok should be persisted, got %d inserts", repo.inserts)
	}
}

func TestImport_AbortsOnInfrastructureError(t *testing.T) {
	boom := errors.New("db down")
	ing := app.NewIngestionService(corpus.NewStore(), &fakeRepo{insertErr: boom}, nil)

	_, err := ing.Import(context.Background(), domain.PlatformIOS, []map[string]any{
		{"id": "1", "content": "x", "rating": 3.0, "date": "2025-02-01"},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want db error, got %v", err)
	}
}

func TestHydrate(t *testing.T) {
	repo := &fakeRepo{rows: map[domain.Platform][]domain.ReviewRecord{
		domain.PlatformIOS:     {rec(domain.PlatformIOS, "i1", 4, "a"), rec(domain.PlatformIOS, "i2", 5, "b")},
		domain.PlatformAndroid: {rec(domain.PlatformAndroid, "a1", 1, "c"), {ID: "broken", Platform: domain.PlatformAndroid, Rating: 0, Timestamp: time.Now()}},
	}}
	store := corpus.NewStore()
	ing := app.NewIngestionService(store, repo, &fakeCache{})

	n, err := ing.Hydrate(context.Background())
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 3 || store.Len(domain.PlatformIOS) != 2 || store.Len(domain.PlatformAndroid) != 1 {
		t.Fatalf("unexpected hydrate result n=%d", n)
	}

	again, err := ing.Hydrate(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("second hydrate should add nothing, got %d %v", again, err)
	}

	repo.listErr = errors.New("timeout")
	if _, err := ing.Hydrate(context.Background()); err == nil {
		t.Fatalf("want list error")
	}
}
