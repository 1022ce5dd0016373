package eventstore

import (
	"errors"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var ErrEmptyEventType = errors.New("event type must not be empty")
var ErrInvalidDataJSON = errors.New("event data json is not valid")
var ErrInvalidMetadataJSON = errors.New("event metadata json is not valid")
var ErrMarshalingEventDataFailed = errors.New("marshaling event data failed")
var ErrDecodingEventDataFailed = errors.New("decoding event data failed")

// EventTypeString is the tag that projections match their interest sets against.
type EventTypeString = string

// Events is an alias type for a slice of Event.
type Events = []Event

// ReadEvents is an alias type for a slice of ReadEvent.
type ReadEvents = []ReadEvent

// Event is the DTO that callers hand to EventStore.AppendToStream.
//
// It is built on scalars to stay agnostic of the domain event implementation in the client code.
// Data holds the event payload as JSON; Metadata holds optional caller metadata as JSON.
//
// While its properties are exported, it should only be constructed with the supplied factory methods:
//   - BuildEvent
//   - BuildEventFromJSON
type Event struct {
	Type     EventTypeString
	Data     []byte
	Metadata []byte
}

// EventMetadata is attached by the event store when an event is read back (or synthesized after an append).
// StreamPosition is assigned by the store, never by the caller.
type EventMetadata struct {
	StreamName     string         `json:"streamName"`
	StreamPosition StreamPosition `json:"streamPosition"`
	MessageID      string         `json:"messageId"`
}

// ReadEvent is an Event together with the position information the store assigned to it.
type ReadEvent struct {
	Event
	StreamMetadata EventMetadata
}

// BuildEvent is a factory method for Event that marshals data to JSON.
func BuildEvent(eventType EventTypeString, data any) (Event, error) {
	dataJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(data)
	if err != nil {
		return Event{}, errors.Join(ErrMarshalingEventDataFailed, err)
	}

	return BuildEventFromJSON(eventType, dataJSON, nil)
}

// BuildEventFromJSON is a factory method for Event.
//
// It populates the Event with the given scalar input.
// Returns an error if the event type is empty or if dataJSON or a non-empty metadataJSON are not valid JSON.
func BuildEventFromJSON(eventType EventTypeString, dataJSON []byte, metadataJSON []byte) (Event, error) {
	if eventType == "" {
		return Event{}, ErrEmptyEventType
	}

	if !jsoniter.ConfigFastest.Valid(dataJSON) {
		return Event{}, ErrInvalidDataJSON
	}

	if len(metadataJSON) > 0 && !jsoniter.ConfigFastest.Valid(metadataJSON) {
		return Event{}, ErrInvalidMetadataJSON
	}

	return Event{
		Type:     eventType,
		Data:     dataJSON,
		Metadata: metadataJSON,
	}, nil
}

// ToReadEvent attaches position information to the event.
// The message id follows the "{streamName}-{streamPosition}" scheme.
func (e Event) ToReadEvent(streamName string, position StreamPosition) ReadEvent {
	return ReadEvent{
		Event: e,
		StreamMetadata: EventMetadata{
			StreamName:     streamName,
			StreamPosition: position,
			MessageID:      MessageIDFor(streamName, position),
		},
	}
}

// DecodeData unmarshals the JSON payload into target.
func (e ReadEvent) DecodeData(target any) error {
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(e.Data, target); err != nil {
		return errors.Join(ErrDecodingEventDataFailed, err)
	}

	return nil
}

// MessageIDFor builds the message id for the event at position in streamName.
func MessageIDFor(streamName string, position StreamPosition) string {
	return streamName + "-" + strconv.FormatUint(position, 10)
}
