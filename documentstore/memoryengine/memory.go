// Package memoryengine provides an in-process documentstore.Store.
//
// Documents are kept as JSON bytes in a map keyed by path. Setting a path replaces the document
// and drops anything stored below it; deleting a path removes its whole subtree. While the store
// is disconnected every operation fails with documentstore.ErrStoreDisconnected.
package memoryengine

import (
	"context"
	"slices"
	"sync"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
)

// DocumentStore is a thread-safe in-memory documentstore.Store.
type DocumentStore struct {
	mu           sync.RWMutex
	documents    map[string][]byte
	disconnected bool
}

// NewDocumentStore creates an empty, connected in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string][]byte),
	}
}

// Get returns a snapshot of the document at path.
func (s *DocumentStore) Get(ctx context.Context, path string) (documentstore.Snapshot, error) {
	if err := documentstore.ValidatePath(path); err != nil {
		return documentstore.Snapshot{}, err
	}

	if err := ctx.Err(); err != nil {
		return documentstore.Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disconnected {
		return documentstore.Snapshot{}, documentstore.ErrStoreDisconnected
	}

	raw, ok := s.documents[path]
	if !ok {
		return documentstore.MissingSnapshot(path), nil
	}

	return documentstore.BuildSnapshot(path, slices.Clone(raw)), nil
}

// Set replaces the document at path and everything below it.
func (s *DocumentStore) Set(ctx context.Context, path string, value []byte) error {
	if err := documentstore.ValidatePath(path); err != nil {
		return err
	}

	if err := documentstore.ValidateDocument(value); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return documentstore.ErrStoreDisconnected
	}

	s.deleteSubtree(path)
	s.documents[path] = slices.Clone(value)

	return nil
}

// Delete removes the document at path and everything below it. Deleting a missing path is not an error.
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	if err := documentstore.ValidatePath(path); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return documentstore.ErrStoreDisconnected
	}

	s.deleteSubtree(path)

	return nil
}

// Disconnect puts the store offline; data is kept.
func (s *DocumentStore) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnected = true

	return nil
}

// Reconnect puts the store back online.
func (s *DocumentStore) Reconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnected = false

	return nil
}

// Paths returns the sorted paths of all stored documents.
func (s *DocumentStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.documents))
	for path := range s.documents {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	return paths
}

func (s *DocumentStore) deleteSubtree(path string) {
	for candidate := range s.documents {
		if documentstore.IsAtOrBelow(candidate, path) {
			delete(s.documents, candidate)
		}
	}
}

var _ documentstore.Store = (*DocumentStore)(nil)
