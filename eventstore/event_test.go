package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_BuildEventFromJSON_ErrorCases(t *testing.T) {
	validDataJSON := []byte(`{"key": "value"}`)
	validMetadataJSON := []byte(`{"meta": "data"}`)

	tests := []struct {
		name         string
		eventType    string
		dataJSON     []byte
		metadataJSON []byte
		expectedErr  error
	}{
		{
			name:         "empty event type",
			eventType:    "",
			dataJSON:     validDataJSON,
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrEmptyEventType,
		},
		{
			name:         "invalid data JSON",
			eventType:    "TestEvent",
			dataJSON:     []byte(`{"invalid": json}`),
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrInvalidDataJSON,
		},
		{
			name:         "empty data JSON",
			eventType:    "TestEvent",
			dataJSON:     []byte(``),
			metadataJSON: validMetadataJSON,
			expectedErr:  ErrInvalidDataJSON,
		},
		{
			name:         "invalid metadata JSON",
			eventType:    "TestEvent",
			dataJSON:     validDataJSON,
			metadataJSON: []byte(`{"invalid": json}`),
			expectedErr:  ErrInvalidMetadataJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildEventFromJSON(tt.eventType, tt.dataJSON, tt.metadataJSON)

			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func Test_BuildEventFromJSON_AcceptsMissingMetadata(t *testing.T) {
	event, err := BuildEventFromJSON("TestEvent", []byte(`{"a":1}`), nil)

	assert.NoError(t, err)
	assert.Equal(t, "TestEvent", event.Type)
	assert.Nil(t, event.Metadata)
}

func Test_BuildEvent_MarshalsData(t *testing.T) {
	type added struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}

	event, err := BuildEvent("ProductItemAdded", added{ProductID: "p-1", Quantity: 2})

	assert.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p-1","quantity":2}`, string(event.Data))
}

func Test_ToReadEvent_SynthesizesMessageID(t *testing.T) {
	event, err := BuildEventFromJSON("TestEvent", []byte(`{}`), nil)
	assert.NoError(t, err)

	readEvent := event.ToReadEvent("cart-1", 7)

	assert.Equal(t, "cart-1", readEvent.StreamMetadata.StreamName)
	assert.Equal(t, uint64(7), readEvent.StreamMetadata.StreamPosition)
	assert.Equal(t, "cart-1-7", readEvent.StreamMetadata.MessageID)
}

func Test_DecodeData(t *testing.T) {
	event, err := BuildEventFromJSON("TestEvent", []byte(`{"quantity":3}`), nil)
	assert.NoError(t, err)

	var payload struct {
		Quantity int `json:"quantity"`
	}
	decodeErr := event.ToReadEvent("s", 0).DecodeData(&payload)

	assert.NoError(t, decodeErr)
	assert.Equal(t, 3, payload.Quantity)
}

func Test_AppendResult_Version(t *testing.T) {
	newer := uint64(5)
	older := uint64(3)

	tests := []struct {
		name            string
		result          AppendResult
		expectedVersion uint64
		expectedOK      bool
	}{
		{name: "prefers newer field", result: AppendResult{NextExpectedStreamVersion: &newer, StreamVersion: &older}, expectedVersion: 5, expectedOK: true},
		{name: "falls back to older field", result: AppendResult{StreamVersion: &older}, expectedVersion: 3, expectedOK: true},
		{name: "neither field", result: AppendResult{}, expectedVersion: 0, expectedOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, ok := tt.result.Version()

			assert.Equal(t, tt.expectedVersion, version)
			assert.Equal(t, tt.expectedOK, ok)
		})
	}
}

func Test_AppendOptions_Matches(t *testing.T) {
	assert.True(t, ResolveAppendOptions().Matches(4, true))
	assert.True(t, ResolveAppendOptions(WithExpectedNoStream()).Matches(0, false))
	assert.False(t, ResolveAppendOptions(WithExpectedNoStream()).Matches(0, true))
	assert.True(t, ResolveAppendOptions(WithExpectedStreamVersion(2)).Matches(2, true))
	assert.False(t, ResolveAppendOptions(WithExpectedStreamVersion(2)).Matches(3, true))
	assert.False(t, ResolveAppendOptions(WithExpectedStreamVersion(0)).Matches(0, false))
}
