package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// StaticDir, when non-empty, serves stored files under /uploads/.
	// Set only for the local-disk storage backend; the S3 backend
	// serves files through presigned URLs instead.
	StaticDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /events/{event}/stream", h.Stream)
	mux.HandleFunc("POST /events/{event}/photos", h.Upload)
	mux.HandleFunc("GET /events/{event}/photos", h.ListPhotos)
	mux.HandleFunc("GET /events/{event}/photos/{id}/original", h.FetchOriginal)

	if cfg.StaticDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
