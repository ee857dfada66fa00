package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_insights/internal/adapters/observability"
	redisad "review_insights/internal/adapters/redis"
	"review_insights/internal/app"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
	"review_insights/internal/shared"
	mysqlrepo "review_insights/internal/storage/mysql"
)

// Usage: ingestor [platform:path ...]
// Sources from the command line are added to INGEST_FILES.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	sources, err := shared.ParseIngestSources(append([]string{cfg.IngestFiles}, os.Args[1:]...)...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ingest sources")
	}
	if len(sources) == 0 {
		log.Fatal().Msg("no ingest sources; set INGEST_FILES or pass platform:path arguments")
	}
	log.Info().
		Int("files", len(sources)).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	// dropping cached reports lets API replicas serve fresh data as soon
	// as they refresh their corpus
	var cache domain.Cache
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, cached reports left in place")
		_ = rc.Close()
	} else {
		cache = rc
		defer rc.Close()
	}

	// the store only serves as the duplicate filter here
	store := corpus.NewStore()
	ing := app.NewIngestionService(store, repo, cache)
	if n, err := ing.Hydrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("load existing reviews failed")
	} else {
		log.Info().Int("reviews", n).Msg("existing reviews loaded")
	}

	sem := semaphore.NewWeighted(int64(max(1, cfg.Workers)))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total app.ImportResult
	)

	for _, src := range sources {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("ingestion interrupted")
			break
		}

		wg.Add(1)
		go func(src shared.IngestSource) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := importFile(ctx, ing, src)
			mu.Lock()
			total.Accepted += res.Accepted
			total.Duplicates += res.Duplicates
			total.Rejected += res.Rejected
			mu.Unlock()
			if err != nil {
				log.Warn().Str("file", src.Path).Str("platform", string(src.Platform)).Err(err).Msg("import failed")
				return
			}
			log.Info().Str("file", src.Path).Str("platform", string(src.Platform)).Msg("import ok")
		}(src)
	}

	wg.Wait()

	counts, err := repo.CountReviews(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("count reviews failed")
	}
	log.Info().
		Int("accepted", total.Accepted).
		Int("duplicates", total.Duplicates).
		Int("rejected", total.Rejected).
		Int("ios_total", counts[domain.PlatformIOS]).
		Int("android_total", counts[domain.PlatformAndroid]).
		Msg("ingestion completed")
}

func importFile(ctx context.Context, ing *app.IngestionService, src shared.IngestSource) (app.ImportResult, error) {
	doc, err := os.ReadFile(src.Path)
	if err != nil {
		return app.ImportResult{}, err
	}
	payloads, err := app.ExtractReviewPayloads(doc)
	if err != nil {
		return app.ImportResult{}, err
	}
	return ing.Import(ctx, src.Platform, payloads)
}
