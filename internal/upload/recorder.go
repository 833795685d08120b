package upload

import "context"

// Recorder persists upload metadata. It is an external collaborator to
// the pipeline: a recording failure is logged but never fails an upload
// that has already durably stored its original, so storage and metadata
// can drift transiently. Reconciliation is deliberately out of scope.
type Recorder interface {
	// RecordUpload persists the metadata for one completed upload.
	RecordUpload(ctx context.Context, artifact *Artifact) error
}
