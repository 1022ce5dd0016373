package projections

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

const (
	// MetadataKey is the reserved document key that holds the Metadata envelope.
	MetadataKey = "_metadata"

	// RootPath is the document store subtree that holds all projection documents.
	RootPath = "projections"
)

var ErrStateNotAnObject = errors.New("projection state must encode to a json object")
var ErrInvalidStreamPosition = errors.New("metadata stream position is not a decimal uint64")
var ErrInvalidStreamID = errors.New("stream id must not be blank or contain a slash")

// Metadata is the envelope stored next to the state of every projection document.
// StreamPosition is a decimal string so that the full uint64 range survives JSON number handling.
type Metadata struct {
	StreamID       string `json:"streamId"`
	Name           string `json:"name"`
	SchemaVersion  int    `json:"schemaVersion"`
	StreamPosition string `json:"streamPosition"`
}

// Position parses StreamPosition.
func (m Metadata) Position() (eventstore.StreamPosition, error) {
	position, err := strconv.ParseUint(m.StreamPosition, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidStreamPosition, err)
	}

	return position, nil
}

// FormatStreamPosition renders position the way it is stored in Metadata.
func FormatStreamPosition(position eventstore.StreamPosition) string {
	return strconv.FormatUint(position, 10)
}

// ValidateStreamID checks that streamID can be used as a single path segment.
// A slash would place the document inside the subtree of another stream.
func ValidateStreamID(streamID string) error {
	if strings.TrimSpace(streamID) == "" || strings.Contains(streamID, "/") {
		return ErrInvalidStreamID
	}

	return nil
}

// DocumentPath returns the path of the document of projectionName for streamID.
// Callers validate streamID with ValidateStreamID first.
func DocumentPath(projectionName, streamID string) string {
	return documentstore.JoinPath(RootPath, projectionName, streamID)
}

// ProjectionPath returns the subtree holding all documents of projectionName.
func ProjectionPath(projectionName string) string {
	return documentstore.JoinPath(RootPath, projectionName)
}

// attachMetadata merges metadata into the JSON object stateJSON under MetadataKey.
// A MetadataKey already present in the state is replaced.
func attachMetadata(stateJSON []byte, metadata Metadata) ([]byte, error) {
	if !isJSONObject(stateJSON) {
		return nil, ErrStateNotAnObject
	}

	fields := make(map[string]jsoniter.RawMessage)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(stateJSON, &fields); err != nil {
		return nil, errors.Join(ErrEncodingStateFailed, err)
	}

	metadataJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(metadata)
	if err != nil {
		return nil, errors.Join(ErrEncodingStateFailed, err)
	}
	fields[MetadataKey] = metadataJSON

	document, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(fields)
	if err != nil {
		return nil, errors.Join(ErrEncodingStateFailed, err)
	}

	return document, nil
}

// splitMetadata separates a stored document into its state JSON and its metadata.
// A document without metadata yields a nil metadata; a JSON null yields a nil state.
func splitMetadata(document []byte) ([]byte, *Metadata, error) {
	trimmed := bytes.TrimSpace(document)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, nil
	}

	if !isJSONObject(trimmed) {
		return nil, nil, errors.Join(ErrDecodingStateFailed, ErrStateNotAnObject)
	}

	fields := make(map[string]jsoniter.RawMessage)
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(trimmed, &fields); err != nil {
		return nil, nil, errors.Join(ErrDecodingStateFailed, err)
	}

	var metadata *Metadata
	if rawMetadata, ok := fields[MetadataKey]; ok {
		metadata = &Metadata{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(rawMetadata, metadata); err != nil {
			return nil, nil, errors.Join(ErrDecodingStateFailed, err)
		}
		delete(fields, MetadataKey)
	}

	stateJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(fields)
	if err != nil {
		return nil, nil, errors.Join(ErrDecodingStateFailed, err)
	}

	return stateJSON, metadata, nil
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
