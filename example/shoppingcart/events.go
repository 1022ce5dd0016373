package shoppingcart

import (
	"time"

	"github.com/google/uuid"

	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
)

const (
	ProductItemAddedEventType      = "ProductItemAdded"
	ProductItemRemovedEventType    = "ProductItemRemoved"
	ShoppingCartConfirmedEventType = "ShoppingCartConfirmed"
	ShoppingCartCancelledEventType = "ShoppingCartCancelled"
)

// streamPrefix is prepended to the cart id to form the stream name.
const streamPrefix = "shopping_cart-"

// StreamName returns the event stream of cartID.
func StreamName(cartID uuid.UUID) string {
	return streamPrefix + cartID.String()
}

// ProductItem is a quantity of one product at a unit price.
type ProductItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// ProductItemAdded records that items were put into the cart.
type ProductItemAdded struct {
	CartID      string      `json:"cartId"`
	ProductItem ProductItem `json:"productItem"`
	AddedAt     time.Time   `json:"addedAt"`
}

// ProductItemRemoved records that items were taken out of the cart.
type ProductItemRemoved struct {
	CartID      string      `json:"cartId"`
	ProductItem ProductItem `json:"productItem"`
	RemovedAt   time.Time   `json:"removedAt"`
}

// ShoppingCartConfirmed closes the cart for checkout.
type ShoppingCartConfirmed struct {
	CartID      string    `json:"cartId"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// ShoppingCartCancelled abandons the cart.
type ShoppingCartCancelled struct {
	CartID      string    `json:"cartId"`
	CancelledAt time.Time `json:"cancelledAt"`
}

// BuildProductItemAdded creates the storable ProductItemAdded event.
func BuildProductItemAdded(cartID uuid.UUID, item ProductItem, addedAt time.Time) (eventstore.Event, error) {
	return eventstore.BuildEvent(ProductItemAddedEventType, ProductItemAdded{
		CartID:      cartID.String(),
		ProductItem: item,
		AddedAt:     addedAt.UTC(),
	})
}

// BuildProductItemRemoved creates the storable ProductItemRemoved event.
func BuildProductItemRemoved(cartID uuid.UUID, item ProductItem, removedAt time.Time) (eventstore.Event, error) {
	return eventstore.BuildEvent(ProductItemRemovedEventType, ProductItemRemoved{
		CartID:      cartID.String(),
		ProductItem: item,
		RemovedAt:   removedAt.UTC(),
	})
}

// BuildShoppingCartConfirmed creates the storable ShoppingCartConfirmed event.
func BuildShoppingCartConfirmed(cartID uuid.UUID, confirmedAt time.Time) (eventstore.Event, error) {
	return eventstore.BuildEvent(ShoppingCartConfirmedEventType, ShoppingCartConfirmed{
		CartID:      cartID.String(),
		ConfirmedAt: confirmedAt.UTC(),
	})
}

// BuildShoppingCartCancelled creates the storable ShoppingCartCancelled event.
func BuildShoppingCartCancelled(cartID uuid.UUID, cancelledAt time.Time) (eventstore.Event, error) {
	return eventstore.BuildEvent(ShoppingCartCancelledEventType, ShoppingCartCancelled{
		CartID:      cartID.String(),
		CancelledAt: cancelledAt.UTC(),
	})
}
