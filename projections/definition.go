package projections

import (
	"errors"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

const (
	// DefaultProjectionName is used when a definition is built without a name.
	DefaultProjectionName = "_default"

	// DefaultSchemaVersion is used when a definition is built without a schema version.
	DefaultSchemaVersion = 1
)

var ErrNilEvolveFunc = errors.New("projection evolve function must not be nil")
var ErrEmptyInterestSet = errors.New("projection must handle at least one event type")
var ErrInvalidProjectionName = errors.New("projection name must not be blank or contain a slash")
var ErrInvalidSchemaVersion = errors.New("projection schema version must be positive")
var ErrEvolutionFailed = errors.New("evolving the projection state failed")
var ErrEncodingStateFailed = errors.New("encoding the projection state failed")
var ErrDecodingStateFailed = errors.New("decoding the stored projection state failed")

// EvolveFunc folds one event into the projection state.
//
// A nil state is the null document: it is what the function receives when nothing is stored yet
// (and the definition has no initial state), and returning nil deletes the stored document.
type EvolveFunc[S any] func(state *S, event eventstore.ReadEvent) (*S, error)

// DefinitionConfig is the input of BuildDefinition.
type DefinitionConfig[S any] struct {
	// Name identifies the projection and is the first segment of its document paths. Defaults to "_default".
	Name string

	// SchemaVersion is written into every document's metadata. Defaults to 1.
	SchemaVersion int

	// CanHandle is the interest set: the event types that make this projection run.
	CanHandle []eventstore.EventTypeString

	// Evolve folds one event into the state.
	Evolve EvolveFunc[S]

	// InitialState, if set, seeds the state when no document is stored yet.
	// Without it, Evolve receives a nil state for a fresh stream.
	InitialState func() S
}

// FoldResult is what a projection wants persisted after folding a batch.
type FoldResult struct {
	// Document is the full JSON document, metadata included. Nil if Deleted or NoOp.
	Document []byte

	// Deleted means the fold ended in the null document and the stored document must be removed.
	Deleted bool

	// NoOp means there was nothing to fold.
	NoOp bool
}

// Projection is the type-erased view of a Definition that the engine works with.
type Projection interface {
	Name() string
	SchemaVersion() int
	CanHandle() []eventstore.EventTypeString
	Handles(eventType eventstore.EventTypeString) bool
	Fold(stored documentstore.Snapshot, streamID string, events eventstore.ReadEvents) (FoldResult, error)
}

// Definition is an immutable projection definition for state type S.
// S must encode to a JSON object.
type Definition[S any] struct {
	name          string
	schemaVersion int
	canHandle     []eventstore.EventTypeString
	interestSet   map[eventstore.EventTypeString]struct{}
	evolve        EvolveFunc[S]
	initialState  func() S
}

// BuildDefinition validates config and returns the Definition.
func BuildDefinition[S any](config DefinitionConfig[S]) (*Definition[S], error) {
	name := config.Name
	if name == "" {
		name = DefaultProjectionName
	}

	if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
		return nil, ErrInvalidProjectionName
	}

	schemaVersion := config.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = DefaultSchemaVersion
	}

	if schemaVersion < 0 {
		return nil, ErrInvalidSchemaVersion
	}

	if config.Evolve == nil {
		return nil, ErrNilEvolveFunc
	}

	interestSet := make(map[eventstore.EventTypeString]struct{}, len(config.CanHandle))
	canHandle := make([]eventstore.EventTypeString, 0, len(config.CanHandle))
	for _, eventType := range config.CanHandle {
		if _, seen := interestSet[eventType]; seen || eventType == "" {
			continue
		}
		interestSet[eventType] = struct{}{}
		canHandle = append(canHandle, eventType)
	}

	if len(interestSet) == 0 {
		return nil, ErrEmptyInterestSet
	}

	return &Definition[S]{
		name:          name,
		schemaVersion: schemaVersion,
		canHandle:     canHandle,
		interestSet:   interestSet,
		evolve:        config.Evolve,
		initialState:  config.InitialState,
	}, nil
}

// Name returns the projection name.
func (d *Definition[S]) Name() string {
	return d.name
}

// SchemaVersion returns the schema version written into the metadata.
func (d *Definition[S]) SchemaVersion() int {
	return d.schemaVersion
}

// CanHandle returns a copy of the interest set in declaration order.
func (d *Definition[S]) CanHandle() []eventstore.EventTypeString {
	return slices.Clone(d.canHandle)
}

// Handles reports whether eventType is in the interest set.
func (d *Definition[S]) Handles(eventType eventstore.EventTypeString) bool {
	_, ok := d.interestSet[eventType]
	return ok
}

// HasInitialState reports whether the definition seeds fresh documents from an initial state.
func (d *Definition[S]) HasInitialState() bool {
	return d.initialState != nil
}

// Fold strips the metadata from the stored document, folds events onto the prior state in the given
// order, and returns the document to persist.
//
// The working state is the stored state if there is one, otherwise InitialState() if configured,
// otherwise nil. Every event is passed to Evolve, also those outside the interest set.
// The final state decides: nil deletes the document, anything else overwrites it in full.
// Evolve keeps receiving events after it returned nil, so whether a null state can come back
// to life within one batch is up to the Evolve function.
func (d *Definition[S]) Fold(
	stored documentstore.Snapshot,
	streamID string,
	events eventstore.ReadEvents,
) (FoldResult, error) {

	if len(events) == 0 {
		return FoldResult{NoOp: true}, nil
	}

	state, err := d.priorState(stored)
	if err != nil {
		return FoldResult{}, err
	}

	if state == nil && d.initialState != nil {
		initial := d.initialState()
		state = &initial
	}

	for _, event := range events {
		state, err = d.evolve(state, event)
		if err != nil {
			return FoldResult{}, errors.Join(ErrEvolutionFailed, err)
		}
	}

	if state == nil {
		return FoldResult{Deleted: true}, nil
	}

	stateJSON, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(state)
	if marshalErr != nil {
		return FoldResult{}, errors.Join(ErrEncodingStateFailed, marshalErr)
	}

	document, attachErr := attachMetadata(stateJSON, Metadata{
		StreamID:       streamID,
		Name:           d.name,
		SchemaVersion:  d.schemaVersion,
		StreamPosition: FormatStreamPosition(events[len(events)-1].StreamMetadata.StreamPosition),
	})
	if attachErr != nil {
		return FoldResult{}, attachErr
	}

	return FoldResult{Document: document}, nil
}

func (d *Definition[S]) priorState(stored documentstore.Snapshot) (*S, error) {
	if !stored.Exists() {
		return nil, nil
	}

	stateJSON, _, err := splitMetadata(stored.Raw())
	if err != nil {
		return nil, err
	}

	if stateJSON == nil {
		return nil, nil
	}

	state := new(S)
	if unmarshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(stateJSON, state); unmarshalErr != nil {
		return nil, errors.Join(ErrDecodingStateFailed, unmarshalErr)
	}

	return state, nil
}

var _ Projection = (*Definition[struct{}])(nil)
