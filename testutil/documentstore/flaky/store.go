package flaky

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
)

var ErrScripted = errors.New("scripted document store failure")

// Operation names used in the access log.
const (
	OperationGet        = "get"
	OperationSet        = "set"
	OperationDelete     = "delete"
	OperationDisconnect = "disconnect"
	OperationReconnect  = "reconnect"
)

// Access is one recorded call.
type Access struct {
	Operation string
	Path      string
}

// Behavior decides what one scripted Get does.
type Behavior struct {
	hang  bool
	stall time.Duration
	err   error
}

// Hang blocks the Get until its context is done and returns the context error.
func Hang() Behavior {
	return Behavior{hang: true}
}

// Stall sleeps for d without looking at the context, then passes through.
func Stall(d time.Duration) Behavior {
	return Behavior{stall: d}
}

// Fail returns err, or ErrScripted if err is nil.
func Fail(err error) Behavior {
	if err == nil {
		err = ErrScripted
	}

	return Behavior{err: err}
}

// Pass forwards the Get to the wrapped store.
func Pass() Behavior {
	return Behavior{}
}

// Store wraps a documentstore.Store and misbehaves according to its script.
type Store struct {
	mu            sync.Mutex
	inner         documentstore.Store
	getScript     []Behavior
	setErrors     map[string]error
	deleteErrors  map[string]error
	disconnectErr error
	reconnectErr  error
	accesses      []Access
}

// New returns a Store that passes everything through to inner until scripted otherwise.
func New(inner documentstore.Store) *Store {
	return &Store{
		inner:        inner,
		setErrors:    make(map[string]error),
		deleteErrors: make(map[string]error),
	}
}

// ScriptGets appends behaviors for the next Get calls; once consumed, Gets pass through.
func (s *Store) ScriptGets(behaviors ...Behavior) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getScript = append(s.getScript, behaviors...)

	return s
}

// FailSetOn makes every Set on path return err.
func (s *Store) FailSetOn(path string, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setErrors[path] = orScripted(err)

	return s
}

// FailDeleteOn makes every Delete on path return err.
func (s *Store) FailDeleteOn(path string, err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteErrors[path] = orScripted(err)

	return s
}

// FailDisconnect makes every Disconnect return err.
func (s *Store) FailDisconnect(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnectErr = orScripted(err)

	return s
}

// FailReconnect makes every Reconnect return err.
func (s *Store) FailReconnect(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnectErr = orScripted(err)

	return s
}

// Get follows the next scripted behavior, or passes through.
func (s *Store) Get(ctx context.Context, path string) (documentstore.Snapshot, error) {
	s.mu.Lock()
	s.record(OperationGet, path)
	behavior := Pass()
	if len(s.getScript) > 0 {
		behavior = s.getScript[0]
		s.getScript = s.getScript[1:]
	}
	s.mu.Unlock()

	switch {
	case behavior.hang:
		<-ctx.Done()
		return documentstore.Snapshot{}, ctx.Err()

	case behavior.err != nil:
		return documentstore.Snapshot{}, behavior.err

	case behavior.stall > 0:
		time.Sleep(behavior.stall)
	}

	return s.inner.Get(ctx, path)
}

func (s *Store) Set(ctx context.Context, path string, value []byte) error {
	s.mu.Lock()
	s.record(OperationSet, path)
	err := s.setErrors[path]
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.inner.Set(ctx, path, value)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	s.record(OperationDelete, path)
	err := s.deleteErrors[path]
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.inner.Delete(ctx, path)
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.record(OperationDisconnect, "")
	err := s.disconnectErr
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.inner.Disconnect(ctx)
}

func (s *Store) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	s.record(OperationReconnect, "")
	err := s.reconnectErr
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.inner.Reconnect(ctx)
}

// Calls returns how often operation was called.
func (s *Store) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, access := range s.accesses {
		if access.Operation == operation {
			count++
		}
	}

	return count
}

// CallsOn returns how often operation was called on path.
func (s *Store) CallsOn(operation, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, access := range s.accesses {
		if access.Operation == operation && access.Path == path {
			count++
		}
	}

	return count
}

// Accesses returns a copy of the access log in call order.
func (s *Store) Accesses() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.accesses)
}

// Reset clears the access log. The script is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accesses = nil
}

func (s *Store) record(operation, path string) {
	s.accesses = append(s.accesses, Access{Operation: operation, Path: path})
}

func orScripted(err error) error {
	if err == nil {
		return ErrScripted
	}

	return err
}

var _ documentstore.Store = (*Store)(nil)
