// Package eventstore provides the collaborator contract between an append-only event store
// and the inline projection engine, plus the dependency-free observability ports shared by
// all engines of this module.
//
// The event store is stream oriented: every event belongs to exactly one stream and gets a
// zero-based stream position that the store assigns at append time. A single append must
// receive strictly consecutive positions, which is what allows the projection engine to
// reconstruct every event's position from the post-append stream version alone.
//
// Key types:
//   - Event: what callers append (type + JSON data)
//   - ReadEvent: an Event plus the stream metadata the store assigned to it
//   - AppendResult: the post-append stream version
//   - EventStore: the append/read contract
//
// Common usage pattern:
//
//	event, err := eventstore.BuildEvent("ProductItemAdded", ProductItemAdded{ProductID: "p-1", Quantity: 2})
//	if err != nil {
//		// handle error
//	}
//
//	result, err := store.AppendToStream(ctx, "shopping_cart-42", eventstore.Events{event})
//	if err != nil {
//		// handle error
//	}
//
//	version, _ := result.Version()
package eventstore
