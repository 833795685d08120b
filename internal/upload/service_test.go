package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tospichai/mac-uploader-server/internal/convert"
	"github.com/tospichai/mac-uploader-server/internal/storage"
)

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordUpload(ctx context.Context, artifact *Artifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

// captureNotifier records broadcasts and optionally runs a probe at
// broadcast time, which lets tests observe storage state at the moment
// the notification fires.
type captureNotifier struct {
	notified []Payload
	probe    func(topic string)
}

func (n *captureNotifier) NotifyUpload(topic string, photo any) {
	if n.probe != nil {
		n.probe(topic)
	}
	n.notified = append(n.notified, photo.(Payload))
}

// failingBackend fails every original write.
type failingBackend struct {
	storage.Backend
}

func (failingBackend) Store(_ context.Context, topic, artifactID string, _ storage.Object, _ *storage.Object) (storage.StoredKeys, error) {
	return storage.StoredKeys{}, &storage.WriteError{
		Key: storage.Key(topic, artifactID, storage.VariantOriginal, "jpg"),
		Err: errors.New("disk full"),
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 210, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestService(t *testing.T, notifier Notifier, recorder Recorder, opts ...ServiceOption) (*Service, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir(), "", nil)
	require.NoError(t, err)
	svc := NewService(backend, convert.NewImageConverter(), recorder, notifier, nil, opts...)
	return svc, backend
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores, records and broadcasts a small jpeg", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(nil)
		svc, _ := newTestService(t, notifier, recorder)

		artifact, err := svc.Upload(ctx, "wedding-42", Input{
			Filename: "shot.jpg",
			Data:     jpegBytes(t, 40, 30),
			Uploader: "ana",
		})
		require.NoError(t, err)

		assert.Equal(t, "wedding-42", artifact.Topic)
		assert.False(t, artifact.Processed)
		assert.Equal(t, "wedding-42/"+artifact.ID+"_original.jpg", artifact.OriginalKey)
		// Small originals double as their own thumbnail.
		assert.Equal(t, "wedding-42/"+artifact.ID+"_thumb.jpg", artifact.ThumbnailKey)
		assert.Equal(t, "/uploads/"+artifact.ThumbnailKey, artifact.DisplayURL)
		assert.Equal(t, "/uploads/"+artifact.OriginalKey, artifact.DownloadURL)

		require.Len(t, notifier.notified, 1)
		assert.Equal(t, artifact.ID, notifier.notified[0].ID)
		recorder.AssertCalled(t, "RecordUpload", mock.Anything, mock.Anything)

		// The broadcast payload's locator resolves back to the bytes.
		obj, err := svc.Fetch(ctx, "wedding-42", notifier.notified[0].ID)
		require.NoError(t, err)
		assert.NotEmpty(t, obj.Data)
	})

	t.Run("broadcast fires only after the original is durable", func(t *testing.T) {
		recorder := &mockRecorder{}
		recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(nil)

		var fetchableAtBroadcast bool
		notifier := &captureNotifier{}
		svc, backend := newTestService(t, notifier, recorder)
		notifier.probe = func(topic string) {
			entries, err := backend.List(context.Background(), topic)
			fetchableAtBroadcast = err == nil && len(entries) == 1
		}

		_, err := svc.Upload(ctx, "wedding-42", Input{Filename: "shot.jpg", Data: jpegBytes(t, 10, 10)})
		require.NoError(t, err)
		assert.True(t, fetchableAtBroadcast, "artifact not stored before broadcast")
	})

	t.Run("conversion failure propagates and nothing is broadcast", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		svc, backend := newTestService(t, notifier, recorder)

		_, err := svc.Upload(ctx, "wedding-42", Input{Filename: "shot.xyz", Data: []byte("not an image")})
		require.Error(t, err)

		var convErr *convert.Error
		require.ErrorAs(t, err, &convErr)
		assert.Contains(t, convErr.Reason, "unsupported format")

		assert.Empty(t, notifier.notified)
		recorder.AssertNotCalled(t, "RecordUpload", mock.Anything, mock.Anything)
		entries, err := backend.List(ctx, "wedding-42")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("storage failure propagates and nothing downstream runs", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		svc := NewService(failingBackend{}, convert.NewImageConverter(), recorder, notifier, nil)

		_, err := svc.Upload(ctx, "wedding-42", Input{Filename: "shot.jpg", Data: jpegBytes(t, 10, 10)})
		require.Error(t, err)

		var writeErr *storage.WriteError
		require.ErrorAs(t, err, &writeErr)

		assert.Empty(t, notifier.notified)
		recorder.AssertNotCalled(t, "RecordUpload", mock.Anything, mock.Anything)
	})

	t.Run("bad supplied thumbnail degrades the artifact", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(nil)
		svc, _ := newTestService(t, notifier, recorder)

		artifact, err := svc.Upload(ctx, "wedding-42", Input{
			Filename:          "shot.jpg",
			Data:              jpegBytes(t, 10, 10),
			ThumbnailFilename: "thumb.jpg",
			ThumbnailData:     []byte("garbage"),
		})
		require.NoError(t, err)

		assert.Empty(t, artifact.ThumbnailKey)
		assert.Equal(t, artifact.DownloadURL, artifact.DisplayURL)
		require.Len(t, notifier.notified, 1)
	})

	t.Run("wide original gets a resized thumbnail", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(nil)
		svc, backend := newTestService(t, notifier, recorder, WithThumbnailMaxWidth(50))

		artifact, err := svc.Upload(ctx, "wedding-42", Input{
			Filename: "pano.jpg",
			Data:     jpegBytes(t, 200, 100),
		})
		require.NoError(t, err)
		require.NotEmpty(t, artifact.ThumbnailKey)

		entries, err := backend.List(ctx, "wedding-42")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, artifact.ThumbnailKey, entries[0].ThumbnailKey)
	})

	t.Run("metadata failure is swallowed and the broadcast still fires", func(t *testing.T) {
		notifier := &captureNotifier{}
		recorder := &mockRecorder{}
		recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(errors.New("db down"))
		svc, _ := newTestService(t, notifier, recorder)

		artifact, err := svc.Upload(ctx, "wedding-42", Input{Filename: "shot.jpg", Data: jpegBytes(t, 10, 10)})
		require.NoError(t, err)
		require.NotNil(t, artifact)
		assert.Len(t, notifier.notified, 1)
	})

	t.Run("broadcast survives cancellation after the durable write", func(t *testing.T) {
		reqCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		recorder := &mockRecorder{}
		// The recorder runs after the durable write; cancelling the
		// request here proves the broadcast is detached from it.
		recorder.On("RecordUpload", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).Return(nil)

		notifier := &captureNotifier{}
		svc, _ := newTestService(t, notifier, recorder)

		artifact, err := svc.Upload(reqCtx, "wedding-42", Input{Filename: "shot.jpg", Data: jpegBytes(t, 10, 10)})
		require.NoError(t, err)
		require.NotNil(t, artifact)
		assert.Len(t, notifier.notified, 1)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	notifier := &captureNotifier{}
	recorder := &mockRecorder{}
	recorder.On("RecordUpload", mock.Anything, mock.Anything).Return(nil)
	svc, _ := newTestService(t, notifier, recorder)

	first, err := svc.Upload(ctx, "wedding-42", Input{Filename: "a.jpg", Data: jpegBytes(t, 10, 10)})
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "wedding-42", Input{Filename: "b.jpg", Data: jpegBytes(t, 12, 12)})
	require.NoError(t, err)

	artifacts, err := svc.List(ctx, "wedding-42")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	// Both uploads present with fresh URLs; strict newest-first
	// ordering is covered by the backend tests.
	ids := []string{artifacts[0].ID, artifacts[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	for _, a := range artifacts {
		assert.NotEmpty(t, a.DownloadURL)
		assert.NotEmpty(t, a.DisplayURL)
		assert.Equal(t, "image/jpeg", a.ContentType)
	}

	t.Run("empty topic lists empty", func(t *testing.T) {
		artifacts, err := svc.List(ctx, "nobody-home")
		require.NoError(t, err)
		assert.Empty(t, artifacts)
	})
}
