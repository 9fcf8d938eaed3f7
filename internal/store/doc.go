// Package store provides a SQLite-backed hierarchical key-value tree.
//
// Values live at slash-separated paths such as "User/alice/registrationToken"
// or "Medicine-Order/Active/o1". Objects are flattened into leaf rows, so a
// write at a child path is visible when reading any ancestor and a write at an
// ancestor replaces every descendant.
//
// # Change notification
//
// OnChange registers a callback for a path pattern with named wildcard
// segments ("Medicine-Order/Active/{pushId}"). After every committed write the
// store computes, for each registered pattern, the concrete paths whose value
// changed and delivers a Change carrying the previous value, the new value and
// the bound wildcard parameters. A write whose result is identical to the
// stored value produces no change.
//
// # Change log
//
// Every effective mutation is appended to the changes table and stamped with
// a monotonic logical sequence number. Ordering always uses seq, never wall
// time.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - single open connection; all writes are serialized
package store
