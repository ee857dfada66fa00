package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"review_insights/internal/adapters/observability"
	"review_insights/internal/analytics"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
)

type ReportService struct {
	store    *corpus.Store
	agg      *analytics.Aggregator
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewReportService builds reports from store snapshots. cache may be nil.
func NewReportService(store *corpus.Store, agg *analytics.Aggregator, c domain.Cache, ttl time.Duration) *ReportService {
	return &ReportService{store: store, agg: agg, cache: c, cacheTTL: ttl}
}

// cached entries carry the input hash they were built from; a stale entry
// is rebuilt even if invalidation was missed.
type cachedReport struct {
	Input  string        `json:"input"`
	Report domain.Report `json:"report"`
}

func reportKey(p domain.Platform) string { return "report:" + string(p) }

// Report returns the current report for p. Concurrent requests over the same
// snapshot share one build.
func (s *ReportService) Report(ctx context.Context, p domain.Platform) (domain.Report, error) {
	if !p.Valid() {
		return domain.Report{}, domain.NewValidationError("platform", fmt.Sprintf("unknown platform %q", p))
	}
	snap := s.store.Snapshot()
	input := inputHash(snap, s.agg.Fingerprint())
	key := reportKey(p)

	if s.cache != nil {
		var hit cachedReport
		ok, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("report cache get failed")
		}
		if ok && hit.Input == input {
			return hit.Report, nil
		}
	}

	v, err, shared := s.group.Do(key+":"+input, func() (any, error) {
		start := time.Now()
		rep, err := s.agg.Aggregate(snap, p)
		if err != nil {
			return domain.Report{}, err
		}
		dur := time.Since(start)
		observability.ObserveReportBuild(string(p), dur)
		log.Debug().
			Str("platform", string(p)).
			Int("corpus", len(snap)).
			Int("reviews", rep.Summary.TotalReviews).
			Dur("duration", dur).
			Msg("report built")

		if s.cache != nil {
			// optional size guard
			if b, _ := json.Marshal(rep); len(b) < 1_000_000 {
				if err := s.cache.Set(ctx, key, cachedReport{Input: input, Report: rep}, int(s.cacheTTL.Seconds())); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("report cache set failed")
				}
			}
		}
		return rep, nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	if shared {
		log.Debug().Str("platform", string(p)).Msg("report build shared")
	}
	return v.(domain.Report), nil
}

// Reports builds every platform's report in parallel, in domain.Platforms
// order.
func (s *ReportService) Reports(ctx context.Context) ([]domain.Report, error) {
	out := make([]domain.Report, len(domain.Platforms))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range domain.Platforms {
		g.Go(func() error {
			rep, err := s.Report(gctx, p)
			if err != nil {
				return fmt.Errorf("%s report: %w", p, err)
			}
			out[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// inputHash identifies a snapshot independently of insertion order.
func inputHash(snap []domain.ReviewRecord, fingerprint string) string {
	keys := make([]string, 0, len(snap))
	for _, r := range snap {
		keys = append(keys, string(r.Platform)+"\x00"+r.ID)
	}
	slices.Sort(keys)

	h := sha1.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.Join(keys, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
