package shoppingcart

import (
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
)

// CartSummaryProjectionName is the name of the summary read model.
const CartSummaryProjectionName = "carts_summary"

// CartSummary counts what is in a cart.
type CartSummary struct {
	ProductItemsCount int     `json:"productItemsCount"`
	TotalAmount       float64 `json:"totalAmount"`
}

// NewCartSummaryProjection builds the summary read model.
// It has no initial state: the first added item creates the document.
func NewCartSummaryProjection() (*projections.Definition[CartSummary], error) {
	return projections.BuildDefinition(projections.DefinitionConfig[CartSummary]{
		Name:      CartSummaryProjectionName,
		CanHandle: []string{ProductItemAddedEventType, ProductItemRemovedEventType},
		Evolve:    evolveCartSummary,
	})
}

func evolveCartSummary(state *CartSummary, event eventstore.ReadEvent) (*CartSummary, error) {
	switch event.Type {
	case ProductItemAddedEventType:
		var added ProductItemAdded
		if err := event.DecodeData(&added); err != nil {
			return nil, err
		}

		if state == nil {
			state = &CartSummary{}
		}
		state.ProductItemsCount += added.ProductItem.Quantity
		state.TotalAmount += float64(added.ProductItem.Quantity) * added.ProductItem.UnitPrice

	case ProductItemRemovedEventType:
		if state == nil {
			return nil, nil
		}

		var removed ProductItemRemoved
		if err := event.DecodeData(&removed); err != nil {
			return nil, err
		}

		state.ProductItemsCount -= removed.ProductItem.Quantity
		state.TotalAmount -= float64(removed.ProductItem.Quantity) * removed.ProductItem.UnitPrice
	}

	return state, nil
}
