package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tospichai/mac-uploader-server/internal/convert"
	"github.com/tospichai/mac-uploader-server/internal/storage"
	"github.com/tospichai/mac-uploader-server/internal/stream"
	"github.com/tospichai/mac-uploader-server/internal/upload"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	uploads        *upload.Service
	hub            *stream.Hub
	resolver       upload.TopicResolver
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the size of an accepted multipart body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(uploads *upload.Service, hub *stream.Hub, resolver upload.TopicResolver, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		uploads:        uploads,
		hub:            hub,
		resolver:       resolver,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 25 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	topics := h.hub.Topics()
	subscribers := 0
	for _, topic := range topics {
		subscribers += h.hub.Count(topic)
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Topics:      len(topics),
		Subscribers: subscribers,
	})
}

// topic resolves the event path segment or writes the error response.
func (h *Handlers) topic(w http.ResponseWriter, r *http.Request) (string, bool) {
	topic, err := h.resolver.Resolve(r.Context(), r.PathValue("event"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event code", "INVALID_EVENT")
		return "", false
	}
	return topic, true
}

// Stream handles GET /events/{event}/stream requests. It holds the
// connection open and relays hub messages as Server-Sent Events until
// the client disconnects or the subscriber is pruned.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topic(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAMING_UNSUPPORTED")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.hub.Subscribe(topic)
	defer h.hub.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			// Client went away; the deferred unsubscribe prunes us.
			return
		case <-sub.Done():
			// Pruned by the heartbeat or the dispatcher.
			return
		case msg := <-sub.Messages():
			if err := writeSSE(w, msg); err != nil {
				h.logger.Debug("stream write failed",
					slog.String("topic", topic),
					slog.String("subscriber_id", sub.ID()),
					slog.String("error", err.Error()),
				)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE renders one hub message as a Server-Sent Event frame.
func writeSSE(w io.Writer, msg stream.Message) error {
	data := []byte("{}")
	if msg.Data != nil {
		var err error
		if data, err = json.Marshal(msg.Data); err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, data)
	return err
}

// Upload handles POST /events/{event}/photos requests.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topic(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}

	form := UploadForm{Uploader: r.FormValue("uploader")}
	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("upload validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	photoData, photoName, err := formFile(r, "photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required", "MISSING_PHOTO")
		return
	}

	input := upload.Input{
		Filename: photoName,
		Data:     photoData,
		Uploader: form.Uploader,
	}
	if thumbData, thumbName, err := formFile(r, "thumbnail"); err == nil {
		input.ThumbnailData = thumbData
		input.ThumbnailFilename = thumbName
	}

	artifact, err := h.uploads.Upload(r.Context(), topic, input)
	if err != nil {
		var convErr *convert.Error
		var writeErr *storage.WriteError
		switch {
		case errors.As(err, &convErr):
			writeError(w, http.StatusUnprocessableEntity, convErr.Error(), "CONVERSION_FAILED")
		case errors.As(err, &writeErr):
			h.logger.Error("storage write failed",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "storage is unavailable", "STORAGE_UNAVAILABLE")
		default:
			h.logger.Error("upload failed",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "upload failed", "UPLOAD_FAILED")
		}
		return
	}

	writeJSON(w, http.StatusCreated, artifact.Payload())
}

// formFile reads one uploaded file fully into memory.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}
	return data, header.Filename, nil
}

// ListPhotos handles GET /events/{event}/photos requests.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topic(w, r)
	if !ok {
		return
	}

	artifacts, err := h.uploads.List(r.Context(), topic)
	if err != nil {
		h.logger.Error("failed to list photos",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list photos", "LIST_FAILED")
		return
	}

	photos := make([]upload.Payload, 0, len(artifacts))
	for _, a := range artifacts {
		photos = append(photos, a.Payload())
	}
	writeJSON(w, http.StatusOK, ListPhotosResponse{Photos: photos, Count: len(photos)})
}

// FetchOriginal handles GET /events/{event}/photos/{id}/original requests.
func (h *Handlers) FetchOriginal(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.topic(w, r)
	if !ok {
		return
	}
	artifactID := r.PathValue("id")
	if artifactID == "" {
		writeError(w, http.StatusBadRequest, "photo ID is required", "MISSING_PHOTO_ID")
		return
	}

	obj, err := h.uploads.Fetch(r.Context(), topic, artifactID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "photo not found", "PHOTO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to fetch original",
			slog.String("topic", topic),
			slog.String("photo_id", artifactID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch photo", "FETCH_FAILED")
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		h.logger.Debug("original write aborted",
			slog.String("photo_id", artifactID),
			slog.String("error", err.Error()),
		)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
