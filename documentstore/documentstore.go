package documentstore

import (
	"context"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var ErrEmptyPath = errors.New("document path must not be empty")
var ErrInvalidPath = errors.New("document path must not start or end with a slash or contain empty segments")
var ErrInvalidDocumentJSON = errors.New("document json is not valid")
var ErrDocumentDoesNotExist = errors.New("document does not exist")
var ErrDecodingDocumentFailed = errors.New("decoding the document failed")
var ErrGettingDocumentFailed = errors.New("getting the document failed")
var ErrSettingDocumentFailed = errors.New("setting the document failed")
var ErrDeletingDocumentFailed = errors.New("deleting the document failed")
var ErrStoreDisconnected = errors.New("document store is disconnected")
var ErrEmptyDocumentsTableName = errors.New("documents table name must not be empty")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrCreatingTableFailed = errors.New("creating the documents table failed")

// Store is the get/set/delete-by-path contract the projection engine persists documents through.
//
// Disconnect and Reconnect are a coarse recovery pair: the engine calls them, in that order,
// after a read timed out, hoping that a fresh connection serves the retry.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	Set(ctx context.Context, path string, value []byte) error
	Delete(ctx context.Context, path string) error
	Disconnect(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// Snapshot is the result of a Get: the raw JSON at a path, or nothing.
type Snapshot struct {
	path string
	raw  []byte
}

// BuildSnapshot returns a Snapshot for path; a nil raw means the document does not exist.
func BuildSnapshot(path string, raw []byte) Snapshot {
	return Snapshot{path: path, raw: raw}
}

// MissingSnapshot returns a Snapshot for a path that holds no document.
func MissingSnapshot(path string) Snapshot {
	return Snapshot{path: path}
}

// Path returns the path the snapshot was taken at.
func (s Snapshot) Path() string {
	return s.path
}

// Exists reports whether a document was stored at the path.
func (s Snapshot) Exists() bool {
	return s.raw != nil
}

// Raw returns the stored JSON, nil if the document does not exist.
func (s Snapshot) Raw() []byte {
	return s.raw
}

// Value decodes the stored JSON into target.
func (s Snapshot) Value(target any) error {
	if !s.Exists() {
		return ErrDocumentDoesNotExist
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(s.raw, target); err != nil {
		return errors.Join(ErrDecodingDocumentFailed, err)
	}

	return nil
}

// JoinPath joins path segments with "/".
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath checks that path is non-empty and has no empty segments.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			return ErrInvalidPath
		}
	}

	return nil
}

// ValidateDocument checks that value is valid JSON.
func ValidateDocument(value []byte) error {
	if !jsoniter.ConfigFastest.Valid(value) {
		return ErrInvalidDocumentJSON
	}

	return nil
}

// IsAtOrBelow reports whether candidate equals path or lies in its subtree.
func IsAtOrBelow(candidate, path string) bool {
	return candidate == path || strings.HasPrefix(candidate, path+"/")
}
