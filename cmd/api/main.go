package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "review_insights/internal/adapters/http_server"
	"review_insights/internal/adapters/observability"
	redisad "review_insights/internal/adapters/redis"
	"review_insights/internal/analytics"
	"review_insights/internal/app"
	"review_insights/internal/corpus"
	"review_insights/internal/domain"
	"review_insights/internal/shared"
	mysqlrepo "review_insights/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// rules
	rules, err := shared.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.RulesFile).Msg("load topic rules failed")
	}
	agg, err := analytics.New(rules.AnalyticsConfig(cfg.TopWordsLimit, cfg.TopVersionsLimit))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid analytics config")
	}
	log.Info().
		Int("topics", len(agg.Classifier().Topics())).
		Int("patterns", agg.Classifier().PatternCount()).
		Str("fingerprint", agg.Fingerprint()[:12]).
		Msg("topic rules loaded")

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// cache is optional; reports are rebuilt from the corpus without it
	var cache domain.Cache
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, report cache disabled")
		_ = rc.Close()
	} else {
		cache = rc
		defer rc.Close()
	}

	// deps
	repo := mysqlrepo.New(db)
	store := corpus.NewStore()
	ing := app.NewIngestionService(store, repo, cache)
	n, err := ing.Hydrate(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("hydrate corpus failed")
	}
	log.Info().
		Int("reviews", n).
		Int("ios", store.Len(domain.PlatformIOS)).
		Int("android", store.Len(domain.PlatformAndroid)).
		Msg("corpus hydrated")
	reports := app.NewReportService(store, agg, cache, cfg.CacheTTL)

	// pick up reviews written by cmd/ingestor or other replicas
	if cfg.RefreshInterval > 0 {
		go func() {
			t := time.NewTicker(cfg.RefreshInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					n, err := ing.Hydrate(ctx)
					if err != nil {
						log.Warn().Err(err).Msg("corpus refresh failed")
						continue
					}
					if n > 0 {
						log.Info().Int("reviews", n).Msg("corpus refreshed")
					}
				}
			}
		}()
	}

	// http
	srv := server.New(server.Options{
		IngestRate:  cfg.IngestRatePerSec,
		IngestBurst: cfg.IngestBurst,
		TrustProxy:  cfg.TrustProxy,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{R: reports, I: ing})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
