package upload

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRecorder implements Recorder.
var _ Recorder = (*MemoryRecorder)(nil)

// MemoryRecorder is an in-memory implementation of Recorder.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRecorder struct {
	mu      sync.RWMutex
	byTopic map[string][]*Artifact
}

// NewMemoryRecorder creates a new in-memory upload recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		byTopic: make(map[string][]*Artifact),
	}
}

// RecordUpload stores a clone of the artifact under its topic.
func (r *MemoryRecorder) RecordUpload(_ context.Context, artifact *Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTopic[artifact.Topic] = append(r.byTopic[artifact.Topic], artifact.Clone())
	return nil
}

// ByTopic returns clones of the recorded artifacts for a topic, in
// record order.
func (r *MemoryRecorder) ByTopic(topic string) []*Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.byTopic[topic]
	result := make([]*Artifact, 0, len(records))
	for _, a := range records {
		result = append(result, a.Clone())
	}
	return result
}
