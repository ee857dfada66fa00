package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// IngestRate and IngestBurst limit the write endpoints per client IP;
	// IngestRate <= 0 leaves them unlimited.
	IngestRate  float64
	IngestBurst int
	// TrustProxy takes the client IP from True-Client-IP, X-Real-IP or
	// X-Forwarded-For. Enable only behind a proxy that overwrites them.
	TrustProxy bool
}

type Server struct {
	mux  *chi.Mux
	opts Options
}

func New(opts Options) *Server {
	m := chi.NewRouter()

	// All middlewares go here (before any routes are added)
	if opts.TrustProxy {
		m.Use(chimw.RealIP)
	}
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Timeout(15 * time.Second))
	m.Use(Metrics)
	m.Use(Logger(log.Logger))

	return &Server{mux: m, opts: opts}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
