package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
)

type IngestionService struct {
	store *corpus.Store
	repo  domain.ReviewRepository
	cache domain.Cache
}

// NewIngestionService wires the append-only store with optional persistence
// and report cache. repo and cache may be nil.
func NewIngestionService(store *corpus.Store, r domain.ReviewRepository, cache domain.Cache) *IngestionService {
	return &IngestionService{store: store, repo: r, cache: cache}
}

// ImportResult tallies one import batch.
type ImportResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// Ingest validates r, persists it and adds it to the corpus. Invalid records
// return *domain.ValidationError, known ids *domain.DuplicateIDError; in both
// cases nothing is stored.
func (s *IngestionService) Ingest(ctx context.Context, r domain.ReviewRecord) error {
	if err := r.Validate(); err != nil {
		observability.ObserveIngest(string(r.Platform), "rejected")
		return err
	}
	if s.store.Has(r.Platform, r.ID) {
		observability.ObserveIngest(string(r.Platform), "duplicate")
		return &domain.DuplicateIDError{Platform: r.Platform, ID: r.ID}
	}

	// Persist first so the store never holds a record the database lost.
	if s.repo != nil {
		if err := s.repo.InsertReview(ctx, r); err != nil {
			switch {
			case domain.IsDuplicate(err):
				observability.ObserveIngest(string(r.Platform), "duplicate")
				return err
			case domain.IsValidation(err):
				observability.ObserveIngest(string(r.Platform), "rejected")
				return err
			}
			return fmt.Errorf("insert review %s/%s: %w", r.Platform, r.ID, err)
		}
	}
	if err := s.store.Add(r); err != nil {
		if domain.IsDuplicate(err) {
			observability.ObserveIngest(string(r.Platform), "duplicate")
		}
		return err
	}
	observability.ObserveIngest(string(r.Platform), "accepted")

	if s.cache != nil {
		s.invalidateReports(ctx)
	}
	return nil
}

// Import maps and ingests a batch of scraper export objects. Invalid and
// duplicate reviews are counted and skipped; any other failure aborts the
// batch and is returned together with the partial tally.
func (s *IngestionService) Import(ctx context.Context, p domain.Platform, payloads []map[string]any) (ImportResult, error) {
	var res ImportResult
	for i, raw := range payloads {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec, err := MapReview(p, raw)
		if err != nil {
			res.Rejected++
			observability.ObserveIngest(string(p), "rejected")
			log.Warn().Err(err).Str("platform", string(p)).Int("index", i).Msg("review rejected")
			continue
		}
		switch err := s.Ingest(ctx, rec); {
		case err == nil:
			res.Accepted++
		case domain.IsDuplicate(err):
			res.Duplicates++
		case domain.IsValidation(err):
			res.Rejected++
			log.Warn().Err(err).Str("platform", string(p)).Str("id", rec.ID).Msg("review rejected")
		default:
			return res, err
		}
	}
	log.Info().
		Str("platform", string(p)).
		Int("accepted", res.Accepted).
		Int("duplicates", res.Duplicates).
		Int("rejected", res.Rejected).
		Msg("import finished")
	return res, nil
}

// Hydrate loads every persisted review into the store. Records already in
// the store are skipped. It returns the number of records added.
func (s *IngestionService) Hydrate(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	added := 0
	for _, p := range domain.Platforms {
		rs, err := s.repo.ListReviews(ctx, p)
		if err != nil {
			return added, fmt.Errorf("list %s reviews: %w", p, err)
		}
		for _, r := range rs {
			err := s.store.Add(r)
			var de *domain.DuplicateIDError
			switch {
			case err == nil:
				added++
			case errors.As(err, &de):
			default:
				// a row that no longer validates is skipped, not fatal
				log.Warn().Err(err).Str("platform", string(p)).Str("id", r.ID).Msg("stored review skipped")
			}
		}
	}
	if s.cache != nil && added > 0 {
		s.invalidateReports(ctx)
	}
	return added, nil
}

// Every report embeds the other platform's comparison, so any insert
// invalidates both.
func (s *IngestionService) invalidateReports(ctx context.Context) {
	for _, p := range domain.Platforms {
		if err := s.cache.Del(ctx, reportKey(p)); err != nil {
			log.Warn().Err(err).Str("platform", string(p)).Msg("report cache invalidation failed")
		}
	}
}
