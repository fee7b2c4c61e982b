package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/tripvoice/pkg/ports"
)

// DocumentSink keeps the most recent exported document in memory, for
// front-ends that serve it on request.
type DocumentSink struct {
	mu     sync.RWMutex
	latest *ports.Document
	count  int
}

// NewDocumentSink creates an empty sink.
func NewDocumentSink() *DocumentSink {
	return &DocumentSink{}
}

// Deliver replaces the latest document.
func (s *DocumentSink) Deliver(ctx context.Context, doc ports.Document) (string, error) {
	doc.Data = slices.Clone(doc.Data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &doc
	s.count++
	return "memory://" + doc.Name, nil
}

// Latest returns the last delivered document.
func (s *DocumentSink) Latest() (ports.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return ports.Document{}, false
	}
	return *s.latest, true
}

// Count reports how many documents were delivered.
func (s *DocumentSink) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}
