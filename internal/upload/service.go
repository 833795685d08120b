package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tospichai/mac-uploader-server/internal/convert"
	"github.com/tospichai/mac-uploader-server/internal/storage"
	"github.com/tospichai/mac-uploader-server/internal/upload/id"
)

// Notifier announces completed uploads to live subscribers. The photo
// argument is the JSON-serializable payload of the broadcast.
type Notifier interface {
	NotifyUpload(topic string, photo any)
}

// Service orchestrates one upload end-to-end: conversion, dual-artifact
// storage, URL resolution, metadata recording, and exactly one
// broadcast. It is stateless and safe for concurrent use; it holds no
// lock across its blocking steps.
type Service struct {
	backend   storage.Backend
	converter convert.Converter
	recorder  Recorder
	notifier  Notifier
	logger    *slog.Logger

	// thumbnailMaxWidth is the width threshold above which a thumbnail
	// is derived by resizing the converted original.
	thumbnailMaxWidth int
	// listConcurrency bounds parallel URL resolution during List.
	listConcurrency int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithThumbnailMaxWidth sets the derivation threshold in pixels.
func WithThumbnailMaxWidth(px int) ServiceOption {
	return func(s *Service) {
		if px > 0 {
			s.thumbnailMaxWidth = px
		}
	}
}

// NewService creates an upload Service with the given collaborators.
func NewService(backend storage.Backend, converter convert.Converter, recorder Recorder, notifier Notifier, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		backend:           backend,
		converter:         converter,
		recorder:          recorder,
		notifier:          notifier,
		logger:            logger,
		thumbnailMaxWidth: 1600,
		listConcurrency:   8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input carries one upload's raw material into the pipeline.
type Input struct {
	// Filename is the original file name, used for format detection
	// and error reporting.
	Filename string
	// Data is the raw uploaded file.
	Data []byte
	// ThumbnailFilename and ThumbnailData carry an optional
	// client-supplied thumbnail.
	ThumbnailFilename string
	ThumbnailData     []byte
	// Uploader attributes the upload.
	Uploader string
}

// Upload drives the pipeline for one photo. Conversion and the original
// write are fatal; everything after the durable original write is
// absorbed, so a degraded artifact (no thumbnail, unrecorded metadata)
// still succeeds. The broadcast fires exactly once per successful upload
// and never before the original is durably stored.
func (s *Service) Upload(ctx context.Context, topic string, in Input) (*Artifact, error) {
	artifactID := id.Generate("photo")

	original, err := s.converter.Convert(ctx, in.Data, in.Filename)
	if err != nil {
		// The typed conversion failure propagates to the caller unchanged.
		return nil, err
	}

	thumbnail := s.deriveThumbnail(ctx, artifactID, original, in)

	keys, err := s.backend.Store(ctx, topic, artifactID,
		storage.Object{Data: original.Data, ContentType: original.ContentType, Ext: original.Ext},
		thumbnail,
	)
	if err != nil {
		return nil, err
	}

	// The original is durable from here on. Remaining side effects
	// complete even if the uploader's request is cancelled; viewers
	// should still learn about the photo.
	ctx = context.WithoutCancel(ctx)

	artifact := &Artifact{
		ID:           artifactID,
		Topic:        topic,
		OriginalKey:  keys.OriginalKey,
		ThumbnailKey: keys.ThumbnailKey,
		ContentType:  original.ContentType,
		Processed:    original.Processed,
		Uploader:     in.Uploader,
		UploadedAt:   time.Now(),
	}
	s.resolveURLs(ctx, artifact)

	if err := s.recorder.RecordUpload(ctx, artifact); err != nil {
		// Metadata and storage may drift transiently. The upload has
		// already succeeded from the uploader's perspective.
		s.logger.Error("metadata record failed",
			slog.String("artifact_id", artifactID),
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}

	s.notifier.NotifyUpload(topic, artifact.Payload())

	s.logger.Info("upload completed",
		slog.String("artifact_id", artifactID),
		slog.String("topic", topic),
		slog.Bool("processed", original.Processed),
		slog.Bool("thumbnail", keys.ThumbnailKey != ""),
	)

	return artifact, nil
}

// deriveThumbnail produces the thumbnail object for storage, or nil when
// none can be derived. Every failure here degrades the artifact instead
// of failing the upload.
func (s *Service) deriveThumbnail(ctx context.Context, artifactID string, original convert.Result, in Input) *storage.Object {
	if in.ThumbnailData != nil {
		res, err := s.converter.Convert(ctx, in.ThumbnailData, in.ThumbnailFilename)
		if err != nil {
			s.logger.Warn("supplied thumbnail conversion failed",
				slog.String("artifact_id", artifactID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return &storage.Object{Data: res.Data, ContentType: res.ContentType, Ext: res.Ext}
	}

	if original.Width <= s.thumbnailMaxWidth {
		// Small originals double as their own thumbnail.
		return &storage.Object{Data: original.Data, ContentType: original.ContentType, Ext: original.Ext}
	}

	res, err := s.converter.Resize(ctx, original.Data, s.thumbnailMaxWidth)
	if err != nil {
		s.logger.Warn("thumbnail derivation failed",
			slog.String("artifact_id", artifactID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &storage.Object{Data: res.Data, ContentType: res.ContentType, Ext: res.Ext}
}

// resolveURLs fills DisplayURL and DownloadURL. DownloadURL always
// points at the original; DisplayURL prefers the thumbnail. Resolution
// failures after the durable write are absorbed like every other
// post-commit failure.
func (s *Service) resolveURLs(ctx context.Context, artifact *Artifact) {
	downloadURL, err := s.backend.URLFor(ctx, artifact.OriginalKey)
	if err != nil {
		s.logger.Warn("original URL resolution failed",
			slog.String("key", artifact.OriginalKey),
			slog.String("error", err.Error()),
		)
	}
	artifact.DownloadURL = downloadURL
	artifact.DisplayURL = downloadURL

	if artifact.ThumbnailKey == "" {
		return
	}
	displayURL, err := s.backend.URLFor(ctx, artifact.ThumbnailKey)
	if err != nil {
		s.logger.Warn("thumbnail URL resolution failed",
			slog.String("key", artifact.ThumbnailKey),
			slog.String("error", err.Error()),
		)
		return
	}
	artifact.DisplayURL = displayURL
}

// List returns the artifacts stored under a topic, newest first. URLs
// are resolved fresh on every call because the signed-URL backend's
// URLs expire; resolution runs concurrently but bounded.
func (s *Service) List(ctx context.Context, topic string) ([]*Artifact, error) {
	entries, err := s.backend.List(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	artifacts := make([]*Artifact, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConcurrency)
	for i, entry := range entries {
		g.Go(func() error {
			parsed, _ := storage.ParseKey(entry.OriginalKey)

			artifact := &Artifact{
				ID:           entry.ArtifactID,
				Topic:        topic,
				OriginalKey:  entry.OriginalKey,
				ThumbnailKey: entry.ThumbnailKey,
				ContentType:  storage.ContentTypeForExt(parsed.Ext),
				UploadedAt:   entry.ModifiedAt,
			}
			s.resolveURLs(gctx, artifact)
			artifacts[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return artifacts, nil
}

// Fetch returns the raw bytes of an artifact's original.
// Returns storage.ErrNotFound when no matching key exists.
func (s *Service) Fetch(ctx context.Context, topic, artifactID string) (storage.Object, error) {
	return s.backend.Fetch(ctx, topic, artifactID)
}
