// Package server provides the HTTP surface of the uploader: multipart
// photo uploads, gallery listing, original downloads, and the SSE stream
// that carries live photo updates to gallery viewers.
package server

import "github.com/tospichai/mac-uploader-server/internal/upload"

// UploadForm is the validated, non-file part of a multipart upload.
type UploadForm struct {
	// Uploader is an optional free-form attribution.
	Uploader string `validate:"omitempty,max=120"`
}

// ListPhotosResponse is the HTTP response for listing a gallery.
type ListPhotosResponse struct {
	// Photos are the stored artifacts, newest first.
	Photos []upload.Payload `json:"photos"`
	// Count is the number of photos returned.
	Count int `json:"count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// Topics is the number of topics with at least one live subscriber.
	Topics int `json:"topics"`
	// Subscribers is the total number of live subscribers.
	Subscribers int `json:"subscribers"`
}
