// Package api provides the HTTP front end for conversions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/andresfredes/pdf2ppt/internal/observability"
)

// RouterConfig holds router settings.
type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg RouterConfig, conversions *ConversionHandler) http.Handler {
	if logger == nil {
		logger = observability.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "pdf2ppt",
			"busy":    conversions.Busy(),
		})
	})

	r.Route("/conversions", func(r chi.Router) {
		r.Post("/", conversions.Create)
		r.Get("/", conversions.List)
		r.Get("/{jobId}", conversions.Get)
	})

	return r
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Str("request_id", chimiddleware.GetReqID(r.Context())).
					Dur("duration", time.Since(start)).
					Msg("HTTP request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
