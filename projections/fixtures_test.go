package projections_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
)

const (
	productItemAdded      = "ProductItemAdded"
	productItemRemoved    = "ProductItemRemoved"
	shoppingCartConfirmed = "ShoppingCartConfirmed"
	shoppingCartCancelled = "ShoppingCartCancelled"
	unrelatedEventType    = "GuestInvited"
)

type productItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type cartDetails struct {
	Items  map[string]int `json:"items"`
	Status string         `json:"status"`
}

type cartSummary struct {
	TotalQuantity int `json:"totalQuantity"`
	Changes       int `json:"changes"`
}

type counter struct {
	Count int `json:"count"`
}

type eventLog struct {
	Types []string `json:"types"`
}

func buildCartDetailsProjection(t *testing.T) *projections.Definition[cartDetails] {
	t.Helper()

	definition, err := projections.BuildDefinition(projections.DefinitionConfig[cartDetails]{
		Name:      "carts_details",
		CanHandle: []string{productItemAdded, productItemRemoved, shoppingCartConfirmed, shoppingCartCancelled},
		InitialState: func() cartDetails {
			return cartDetails{Items: map[string]int{}, Status: "Opened"}
		},
		Evolve: func(state *cartDetails, event eventstore.ReadEvent) (*cartDetails, error) {
			if state == nil {
				return nil, nil
			}

			switch event.Type {
			case productItemAdded, productItemRemoved:
				var item productItem
				if err := event.DecodeData(&item); err != nil {
					return nil, err
				}

				if event.Type == productItemRemoved {
					item.Quantity = -item.Quantity
				}
				state.Items[item.ProductID] += item.Quantity

			case shoppingCartConfirmed:
				state.Status = "Confirmed"

			case shoppingCartCancelled:
				return nil, nil
			}

			return state, nil
		},
	})
	require.NoError(t, err)

	return definition
}

func buildCartSummaryProjection(t *testing.T) *projections.Definition[cartSummary] {
	t.Helper()

	definition, err := projections.BuildDefinition(projections.DefinitionConfig[cartSummary]{
		Name:      "carts_summary",
		CanHandle: []string{productItemAdded, productItemRemoved},
		Evolve: func(state *cartSummary, event eventstore.ReadEvent) (*cartSummary, error) {
			if state == nil {
				state = &cartSummary{}
			}

			var item productItem
			if err := event.DecodeData(&item); err != nil {
				return nil, err
			}

			switch event.Type {
			case productItemAdded:
				state.TotalQuantity += item.Quantity
				state.Changes++

			case productItemRemoved:
				state.TotalQuantity -= item.Quantity
				state.Changes++
			}

			return state, nil
		},
	})
	require.NoError(t, err)

	return definition
}

func buildCounterProjection(t *testing.T, name string, eventTypes ...string) *projections.Definition[counter] {
	t.Helper()

	definition, err := projections.BuildDefinition(projections.DefinitionConfig[counter]{
		Name:         name,
		CanHandle:    eventTypes,
		InitialState: func() counter { return counter{} },
		Evolve: func(state *counter, event eventstore.ReadEvent) (*counter, error) {
			if !slices.Contains(eventTypes, event.Type) {
				return state, nil
			}

			return &counter{Count: state.Count + 1}, nil
		},
	})
	require.NoError(t, err)

	return definition
}

func buildEventLogProjection(t *testing.T, eventTypes ...string) *projections.Definition[eventLog] {
	t.Helper()

	definition, err := projections.BuildDefinition(projections.DefinitionConfig[eventLog]{
		Name:         "event_log",
		CanHandle:    eventTypes,
		InitialState: func() eventLog { return eventLog{Types: []string{}} },
		Evolve: func(state *eventLog, event eventstore.ReadEvent) (*eventLog, error) {
			state.Types = append(state.Types, event.Type)
			return state, nil
		},
	})
	require.NoError(t, err)

	return definition
}

func productItemEvent(t *testing.T, eventType, productID string, quantity int) eventstore.Event {
	t.Helper()

	event, err := eventstore.BuildEvent(eventType, productItem{ProductID: productID, Quantity: quantity})
	require.NoError(t, err)

	return event
}

func emptyEvent(t *testing.T, eventType string) eventstore.Event {
	t.Helper()

	event, err := eventstore.BuildEventFromJSON(eventType, []byte(`{}`), nil)
	require.NoError(t, err)

	return event
}

// readEventsFrom positions events consecutively in streamName, starting at first.
func readEventsFrom(streamName string, first uint64, events ...eventstore.Event) eventstore.ReadEvents {
	readEvents := make(eventstore.ReadEvents, 0, len(events))
	for i, event := range events {
		readEvents = append(readEvents, event.ToReadEvent(streamName, first+uint64(i)))
	}

	return readEvents
}
