// Package upload provides the Artifact aggregate and the orchestrator
// that drives one photo upload end-to-end: conversion, dual-artifact
// storage, metadata recording, and the broadcast to live gallery
// viewers.
package upload

import "time"

// Artifact is the outcome of one upload: the stored original, the
// optional thumbnail, and the URLs resolved for them.
type Artifact struct {
	// ID is minted before any storage write and correlates conversion,
	// storage, metadata, and broadcast for the same upload.
	ID string
	// Topic is the owning event.
	Topic string
	// OriginalKey locates the stored original.
	OriginalKey string
	// ThumbnailKey locates the stored thumbnail; empty when the
	// thumbnail write or conversion was skipped or failed.
	ThumbnailKey string
	// DisplayURL points at the thumbnail when present, else the original.
	DisplayURL string
	// DownloadURL always points at the original.
	DownloadURL string
	// ContentType is the MIME type of the stored original.
	ContentType string
	// Processed is true when the original required format conversion.
	Processed bool
	// Uploader attributes the upload; free-form, may be empty.
	Uploader string
	// UploadedAt is when the original write completed.
	UploadedAt time.Time
}

// Clone creates a copy of the artifact for safe reads.
func (a *Artifact) Clone() *Artifact {
	clone := *a
	return &clone
}

// Payload is the wire shape of an artifact, shared by photo_update
// broadcasts and HTTP responses.
type Payload struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	OriginalKey  string    `json:"original_key"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	DisplayURL   string    `json:"display_url"`
	DownloadURL  string    `json:"download_url"`
	ContentType  string    `json:"content_type"`
	Processed    bool      `json:"processed"`
	Uploader     string    `json:"uploader,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Payload converts the artifact to its wire shape.
func (a *Artifact) Payload() Payload {
	return Payload{
		ID:           a.ID,
		Topic:        a.Topic,
		OriginalKey:  a.OriginalKey,
		ThumbnailKey: a.ThumbnailKey,
		DisplayURL:   a.DisplayURL,
		DownloadURL:  a.DownloadURL,
		ContentType:  a.ContentType,
		Processed:    a.Processed,
		Uploader:     a.Uploader,
		UploadedAt:   a.UploadedAt,
	}
}
