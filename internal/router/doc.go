// Package router delivers store changes to registered handlers.
//
// A Router binds one Handler per path pattern. Run subscribes every pattern
// to the store and processes each route's changes on its own goroutine:
//
//   - Per-route FIFO: changes for one pattern are handled in commit order.
//   - Routes are independent: a slow enrichment handler never delays order
//     routing, and handlers must not assume ordering across patterns.
//   - At-most-once: a failing or panicking handler is logged with the full
//     event context and the change is not retried. Changes still queued when
//     Run stops are dropped.
//
// Handlers receive an Event carrying a correlation ID, the concrete path, the
// bound wildcard parameters and the before/after values.
package router
