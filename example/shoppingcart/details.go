package shoppingcart

import (
	"time"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
)

// CartDetailsProjectionName is the name of the details read model.
const CartDetailsProjectionName = "carts_details"

// Cart statuses.
const (
	StatusOpened    = "Opened"
	StatusConfirmed = "Confirmed"
)

// CartDetails is the full view of one cart.
type CartDetails struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	ProductItems []ProductItem `json:"productItems"`
	TotalAmount  float64       `json:"totalAmount"`
	OpenedAt     *time.Time    `json:"openedAt,omitempty"`
	ConfirmedAt  *time.Time    `json:"confirmedAt,omitempty"`
}

// NewCartDetailsProjection builds the details read model.
// Every cart starts as an empty opened cart; cancelling a cart deletes its details.
func NewCartDetailsProjection() (*projections.Definition[CartDetails], error) {
	return projections.BuildDefinition(projections.DefinitionConfig[CartDetails]{
		Name: CartDetailsProjectionName,
		CanHandle: []string{
			ProductItemAddedEventType,
			ProductItemRemovedEventType,
			ShoppingCartConfirmedEventType,
			ShoppingCartCancelledEventType,
		},
		InitialState: func() CartDetails {
			return CartDetails{Status: StatusOpened, ProductItems: []ProductItem{}}
		},
		Evolve: evolveCartDetails,
	})
}

func evolveCartDetails(state *CartDetails, event eventstore.ReadEvent) (*CartDetails, error) {
	// a cancelled cart stays gone
	if state == nil {
		return nil, nil
	}

	switch event.Type {
	case ProductItemAddedEventType:
		var added ProductItemAdded
		if err := event.DecodeData(&added); err != nil {
			return nil, err
		}

		state.ID = added.CartID
		if state.OpenedAt == nil {
			state.OpenedAt = &added.AddedAt
		}
		state.ProductItems = addItem(state.ProductItems, added.ProductItem)
		state.TotalAmount += float64(added.ProductItem.Quantity) * added.ProductItem.UnitPrice

	case ProductItemRemovedEventType:
		var removed ProductItemRemoved
		if err := event.DecodeData(&removed); err != nil {
			return nil, err
		}

		state.ProductItems = removeItem(state.ProductItems, removed.ProductItem)
		state.TotalAmount -= float64(removed.ProductItem.Quantity) * removed.ProductItem.UnitPrice

	case ShoppingCartConfirmedEventType:
		var confirmed ShoppingCartConfirmed
		if err := event.DecodeData(&confirmed); err != nil {
			return nil, err
		}

		state.Status = StatusConfirmed
		state.ConfirmedAt = &confirmed.ConfirmedAt

	case ShoppingCartCancelledEventType:
		return nil, nil
	}

	return state, nil
}

func addItem(items []ProductItem, item ProductItem) []ProductItem {
	for i := range items {
		if items[i].ProductID == item.ProductID && items[i].UnitPrice == item.UnitPrice {
			items[i].Quantity += item.Quantity
			return items
		}
	}

	return append(items, item)
}

func removeItem(items []ProductItem, item ProductItem) []ProductItem {
	kept := items[:0]
	for _, existing := range items {
		if existing.ProductID == item.ProductID && existing.UnitPrice == item.UnitPrice {
			existing.Quantity -= item.Quantity
		}

		if existing.Quantity > 0 {
			kept = append(kept, existing)
		}
	}

	return kept
}
