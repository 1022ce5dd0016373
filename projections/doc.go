// Package projections keeps read models in a document store in step with an event store.
//
// A projection is a left fold over the events of one stream. After every successful append the
// projections whose interest set contains at least one of the appended event types are run inline,
// one after the other: the engine reads the current document, folds the new events onto it and
// writes the result back (or deletes the document if the fold ends in the null state).
//
// Documents live at projections/{projectionName}/{streamId}. Next to the state every document
// carries a "_metadata" object with the stream id, the projection name, its schema version and the
// position of the last event that was folded into it.
//
// Reads are the fragile part of the protocol, so they run under a RetryPolicy: each attempt has
// its own timeout, a timed out attempt cycles the store connection, and attempts are separated by a
// linear backoff. Writes are not retried.
//
// There is no transaction across projections, nor across the event store and the document store:
// a failing projection leaves the documents of earlier projections written and the events appended.
//
// Common usage pattern:
//
//	summary, err := projections.BuildDefinition(projections.DefinitionConfig[CartSummary]{
//		Name:      "carts_summary",
//		CanHandle: []string{"ProductItemAdded", "ShoppingCartConfirmed"},
//		Evolve:    evolveCartSummary,
//	})
//	if err != nil {
//		// handle error
//	}
//
//	store, err := projections.WireRealtimeDBProjections(projections.WiringConfig{
//		EventStore:    eventStore,
//		DocumentStore: documentStore,
//		Projections:   []projections.Projection{summary},
//	}, projections.WithLogger(slog.Default()))
//	if err != nil {
//		// handle error
//	}
//
//	result, err := store.AppendToStream(ctx, "shopping_cart-42", events)
package projections
