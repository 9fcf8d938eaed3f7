// Package orders moves medicine orders through their lifecycle.
//
// An order is created under Medicine-Order/Active and ends in exactly one of
// two terminal buckets:
//
//	Active --(targeted or accepted)--> Pharmacy/<name>/Order-Queue/<id>
//	Active --(availability=false)----> Medicine-Order/Inactive/<id>
//
// Decide maps a change at an active order to a Transition without touching
// the store. Engine applies it: routing is a single atomic move, so the order
// is never in two buckets, and re-applying a route to an order that has
// already left Active finds nothing to move and sends nothing.
package orders
