package metrics

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ServerOptions configures the HTTP endpoint. Status and Properties are
// optional snapshot functions rendered as JSON.
type ServerOptions struct {
	Addr       string
	Metrics    *Metrics
	Logger     *zap.Logger
	Status     func() any
	Properties func() any
}

// NewServer builds the metrics/health HTTP server. The caller runs
// ListenAndServe and Shutdown.
func NewServer(opts ServerOptions) *http.Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	}).Methods("GET")
	router.Handle("/status", snapshotHandler(opts.Status, logger)).Methods("GET")
	router.Handle("/properties", snapshotHandler(opts.Properties, logger)).Methods("GET")

	router.Use(loggingMiddleware(logger))

	return &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func snapshotHandler(fn func() any, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fn == nil {
			http.Error(w, "not available", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, fn())
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Write response", zap.Error(err))
	}
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.Debug("HTTP request processed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
