// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_insights/internal/app"
	"review_insights/internal/domain"
)

const maxImportBytes = 32 << 20

type Handlers struct {
	R *app.ReportService
	I *app.IngestionService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type reportsResponse struct {
	Reports []domain.Report `json:"reports"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/reports", h.listReports)
	s.mux.Get("/v1/reports/{platform}", h.getReport)
	s.mux.Group(func(r chi.Router) {
		r.Use(RateLimit(s.opts.IngestRate, s.opts.IngestBurst))
		r.Post("/v1/reviews", h.postReview)
		r.Post("/v1/reviews/import", h.importReviews)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		de *domain.DuplicateIDError
	)
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", ve.Error())
	case errors.As(err, &de):
		writeProblem(w, http.StatusConflict, "Duplicate Review", de.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	p, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	rep, err := h.R.Report(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, rep)
}

func (h *Handlers) listReports(w http.ResponseWriter, r *http.Request) {
	reps, err := h.R.Reports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, reportsResponse{Reports: reps})
}

func (h *Handlers) postReview(w http.ResponseWriter, r *http.Request) {
	var rec domain.ReviewRecord
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if rec.Platform == "" {
		rec.Platform = domain.Platform(r.URL.Query().Get("platform"))
	}
	p, err := domain.ParsePlatform(string(rec.Platform))
	if err != nil {
		writeError(w, err)
		return
	}
	rec.Platform = p
	rec.Timestamp = rec.Timestamp.UTC()

	if err := h.I.Ingest(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/reports/"+string(p))
	writeJSON(w, http.StatusCreated, rec)
}

// importReviews accepts a scraper export (array, or object with "reviews")
// for the platform named in ?platform=.
func (h *Handlers) importReviews(w http.ResponseWriter, r *http.Request) {
	p, err := domain.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
			return
		}
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	payloads, err := app.ExtractReviewPayloads(doc)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.I.Import(r.Context(), p, payloads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
