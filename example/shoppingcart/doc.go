// Package shoppingcart is a small example domain for the inline projections.
//
// A shopping cart stream records product items being added and removed and ends with either a
// confirmation or a cancellation. Two read models are kept next to the stream:
//   - carts_details: the full cart, seeded from an initial state; a cancelled cart is deleted
//   - carts_summary: item count and total amount; it only exists once an item was added
package shoppingcart
