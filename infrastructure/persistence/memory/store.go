package memory

import (
	"context"
	"fmt"
	"sync"

	"internship-backend/application/ports"
)

// Store provides an in-memory implementation of ports.DocumentStore
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]ports.Document
	order       map[string][]string
}

// NewStore creates a new in-memory document store
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]ports.Document),
		order:       make(map[string][]string),
	}
}

// List returns documents newest first, honouring filter, offset and limit.
func (s *Store) List(ctx context.Context, collection string, opts ports.ListOptions) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[collection]
	docs := make([]ports.Document, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		doc := s.collections[collection][ids[i]]
		if matches(doc, opts.Filter) {
			docs = append(docs, clone(doc))
		}
	}

	if opts.Offset >= len(docs) {
		return []ports.Document{}, nil
	}
	docs = docs[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(docs) {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	return clone(doc), nil
}

// Insert stores a new document
func (s *Store) Insert(ctx context.Context, collection string, doc ports.Document) (ports.Document, error) {
	id := doc.ID()
	if id == "" {
		return nil, fmt.Errorf("document has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]ports.Document)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return nil, fmt.Errorf("%s/%s already exists", collection, id)
	}
	docs[id] = clone(doc)
	s.order[collection] = append(s.order[collection], id)
	return clone(doc), nil
}

// Update merges patch into an existing document
func (s *Store) Update(ctx context.Context, collection, id string, patch ports.Document) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	for k, v := range patch {
		doc[k] = v
	}
	return clone(doc), nil
}

// Delete removes a document
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	delete(s.collections[collection], id)

	ids := s.order[collection]
	for i, existing := range ids {
		if existing == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func matches(doc ports.Document, filter map[string]string) bool {
	for k, want := range filter {
		if fmt.Sprint(doc[k]) != want {
			return false
		}
	}
	return true
}

func clone(doc ports.Document) ports.Document {
	out := make(ports.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
