package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"review_insights/internal/domain"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	Workers     int
	CacheTTL    time.Duration

	// RefreshInterval is how often the API re-reads MySQL for reviews
	// written by other processes. Zero disables it.
	RefreshInterval time.Duration

	RulesFile        string
	TopWordsLimit    int
	TopVersionsLimit int

	IngestRatePerSec float64
	IngestBurst      int
	// TrustProxy reads client IPs from forwarding headers; set it only
	// behind a proxy that overwrites them.
	TrustProxy bool

	// IngestFiles lists scraper exports for cmd/ingestor as
	// "platform:path" pairs separated by commas.
	IngestFiles string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a number, using default")
		}
		return def
	}
	atob := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not a boolean, using default")
		}
		return def
	}
	c := Config{
		AppEnv:           env("APP_ENV", "prod"),
		HTTPAddr:         env("HTTP_ADDR", ":8080"),
		MetricsAddr:      env("METRICS_ADDR", ":9100"),
		MySQLDSN:         env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:        env("REDIS_ADDR", "localhost:6379"),
		RedisPass:        env("REDIS_PASSWORD", ""),
		RedisDB:          atoi("REDIS_DB", 0),
		Workers:          atoi("INGEST_WORKERS", 8),
		CacheTTL:         time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		RefreshInterval:  time.Duration(atoi("REFRESH_INTERVAL_SECONDS", 60)) * time.Second,
		RulesFile:        env("RULES_FILE", ""),
		TopWordsLimit:    atoi("TOP_WORDS_LIMIT", 10),
		TopVersionsLimit: atoi("TOP_VERSIONS_LIMIT", 5),
		IngestRatePerSec: atof("INGEST_RATE_PER_SEC", 5),
		IngestBurst:      atoi("INGEST_BURST", 20),
		TrustProxy:       atob("TRUST_PROXY", false),
		IngestFiles:      env("INGEST_FILES", ""),
	}
	if c.RulesFile == "" {
		log.Info().Msg("RULES_FILE is empty, using built-in topic rules")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

type IngestSource struct {
	Platform domain.Platform
	Path     string
}

// ParseIngestSources parses "android:/data/gp.json,ios:/data/as.json".
// Platform names accept the same aliases as the API.
func ParseIngestSources(lists ...string) ([]IngestSource, error) {
	var out []IngestSource
	for _, list := range lists {
		for _, item := range strings.Split(list, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			name, path, ok := strings.Cut(item, ":")
			if !ok || strings.TrimSpace(path) == "" {
				return nil, fmt.Errorf("ingest source %q: want platform:path", item)
			}
			p, err := domain.ParsePlatform(name)
			if err != nil {
				return nil, fmt.Errorf("ingest source %q: %w", item, err)
			}
			out = append(out, IngestSource{Platform: p, Path: strings.TrimSpace(path)})
		}
	}
	return out, nil
}
