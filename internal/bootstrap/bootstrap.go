// Package bootstrap provides dependency initialization for the photo upload service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tospichai/mac-uploader-server/internal/config"
	"github.com/tospichai/mac-uploader-server/internal/convert"
	"github.com/tospichai/mac-uploader-server/internal/storage"
	"github.com/tospichai/mac-uploader-server/internal/stream"
	"github.com/tospichai/mac-uploader-server/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Uploads  *upload.Service
	Hub      *stream.Hub
	Resolver upload.TopicResolver

	// StaticDir is non-empty when the local backend is active and its
	// files should be served under /uploads/.
	StaticDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	backend, staticDir, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	hub := stream.NewHub(logger,
		stream.WithHeartbeatInterval(cfg.HeartbeatInterval),
		stream.WithSendTimeout(cfg.SendTimeout),
	)
	dispatcher := stream.NewDispatcher(hub, logger)

	uploads := upload.NewService(
		backend,
		convert.NewImageConverter(),
		upload.NewMemoryRecorder(),
		dispatcher,
		logger,
		upload.WithThumbnailMaxWidth(cfg.ThumbnailMaxWidth),
	)

	return &Dependencies{
		Uploads:   uploads,
		Hub:       hub,
		Resolver:  upload.SlugResolver{},
		StaticDir: staticDir,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
// The second return value is the directory to serve statically, empty for S3.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Backend, string, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SignedURLTTL:    cfg.SignedURLTTL,
		}
		s3Backend, err := storage.NewS3Backend(ctx, s3Cfg, logger)
		if err != nil {
			return nil, "", fmt.Errorf("create S3 backend: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Backend, "", nil
	}

	localBackend, err := storage.NewLocalBackend(cfg.UploadsDir, cfg.BaseURL, logger)
	if err != nil {
		return nil, "", fmt.Errorf("create local backend: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("uploads_dir", localBackend.Root()),
	)
	return localBackend, localBackend.Root(), nil
}
