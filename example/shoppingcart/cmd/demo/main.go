// Command demo appends a few shopping cart streams through the inline projections and prints the
// resulting read models.
//
// Configuration comes from the environment, see Config.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/emmett-community/emmett-google-realtime-db/documentstore"
	"github.com/emmett-community/emmett-google-realtime-db/eventstore"
	"github.com/emmett-community/emmett-google-realtime-db/example/shoppingcart"
	"github.com/emmett-community/emmett-google-realtime-db/projections"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if runErr := run(context.Background(), cfg, logger); runErr != nil {
		logger.Error("demo failed", "error", runErr)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	opened, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer opened.close()

	details, err := shoppingcart.NewCartDetailsProjection()
	if err != nil {
		return err
	}

	summary, err := shoppingcart.NewCartSummaryProjection()
	if err != nil {
		return err
	}

	store, err := projections.WireRealtimeDBProjections(
		projections.WiringConfig{
			EventStore:    opened.events,
			DocumentStore: opened.documents,
			Projections:   []projections.Projection{details, summary},
		},
		projections.WithLogger(logger),
		projections.WithContextualLogger(logger),
		projections.WithReadTimeouts(cfg.ReadTimeouts...),
		projections.WithReadBackoff(cfg.ReadBackoff),
	)
	if err != nil {
		return err
	}

	logger.Info("demo started", "store", cfg.Store)

	confirmedCart := uuid.New()
	if scenarioErr := appendConfirmedCart(ctx, store, confirmedCart); scenarioErr != nil {
		return scenarioErr
	}

	cancelledCart := uuid.New()
	if scenarioErr := appendCancelledCart(ctx, store, cancelledCart); scenarioErr != nil {
		return scenarioErr
	}

	for _, cartID := range []uuid.UUID{confirmedCart, cancelledCart} {
		if printErr := printReadModels(ctx, opened.documents, logger, cartID); printErr != nil {
			return printErr
		}
	}

	return nil
}

func appendConfirmedCart(ctx context.Context, store eventstore.EventStore, cartID uuid.UUID) error {
	now := time.Now()
	streamName := shoppingcart.StreamName(cartID)

	batch, err := buildEvents(
		func() (eventstore.Event, error) {
			return shoppingcart.BuildProductItemAdded(cartID, shoppingcart.ProductItem{ProductID: "book", Quantity: 2, UnitPrice: 12.5}, now)
		},
		func() (eventstore.Event, error) {
			return shoppingcart.BuildProductItemAdded(cartID, shoppingcart.ProductItem{ProductID: "pen", Quantity: 4, UnitPrice: 1.2}, now)
		},
	)
	if err != nil {
		return err
	}

	if _, appendErr := store.AppendToStream(ctx, streamName, batch, eventstore.WithExpectedNoStream()); appendErr != nil {
		return appendErr
	}

	batch, err = buildEvents(
		func() (eventstore.Event, error) {
			return shoppingcart.BuildProductItemRemoved(cartID, shoppingcart.ProductItem{ProductID: "pen", Quantity: 1, UnitPrice: 1.2}, now)
		},
		func() (eventstore.Event, error) {
			return shoppingcart.BuildShoppingCartConfirmed(cartID, now)
		},
	)
	if err != nil {
		return err
	}

	_, err = store.AppendToStream(ctx, streamName, batch, eventstore.WithExpectedStreamVersion(1))

	return err
}

func appendCancelledCart(ctx context.Context, store eventstore.EventStore, cartID uuid.UUID) error {
	now := time.Now()

	batch, err := buildEvents(
		func() (eventstore.Event, error) {
			return shoppingcart.BuildProductItemAdded(cartID, shoppingcart.ProductItem{ProductID: "lamp", Quantity: 1, UnitPrice: 40}, now)
		},
		func() (eventstore.Event, error) {
			return shoppingcart.BuildShoppingCartCancelled(cartID, now)
		},
	)
	if err != nil {
		return err
	}

	_, err = store.AppendToStream(ctx, shoppingcart.StreamName(cartID), batch, eventstore.WithExpectedNoStream())

	return err
}

func buildEvents(factories ...func() (eventstore.Event, error)) (eventstore.Events, error) {
	events := make(eventstore.Events, 0, len(factories))
	for _, factory := range factories {
		event, err := factory()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func printReadModels(ctx context.Context, store documentstore.Store, logger *slog.Logger, cartID uuid.UUID) error {
	streamName := shoppingcart.StreamName(cartID)

	details, err := projections.ReadProjectionState[shoppingcart.CartDetails](
		ctx, store, shoppingcart.CartDetailsProjectionName, streamName)
	if err != nil {
		return err
	}

	summary, err := projections.ReadProjectionState[shoppingcart.CartSummary](
		ctx, store, shoppingcart.CartSummaryProjectionName, streamName)
	if err != nil {
		return err
	}

	detailsJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(details)
	if err != nil {
		return err
	}

	summaryJSON, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(summary)
	if err != nil {
		return err
	}

	logger.Info("read models",
		"stream_id", streamName,
		"details", detailsJSON,
		"summary", summaryJSON,
	)

	return nil
}
