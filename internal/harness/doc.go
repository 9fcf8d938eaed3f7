// Package harness runs medibox conformance scenarios.
//
// A scenario seeds a fresh tree, performs a sequence of client writes and
// checks what the live handlers did in response: the nodes they wrote, the
// notifications they sent and the tokens they pruned. Every scenario runs
// against an in-memory SQLite tree, the real router and handlers, and a
// recording transport, so the trace reflects actual behavior.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: targeted_order
//	description: "What this scenario validates"
//	event_id: evt-fixed            # optional, defaults to test-event-default
//	seed:                          # written before handlers start
//	  Pharmacy/pharmA/registrationToken: pharmA-token
//	fail_tokens:                   # transport fault injection
//	  stale-token: messaging/registration-token-not-registered
//	steps:
//	  - set: Medicine-Order/Active/o1
//	    value: { id: o1, userName: alice }
//	  - merge: Medicine-Order/Active/o1
//	    fields: { availability: false }
//	  - delete: Medicine-Order/Active/o2
//	assertions:
//	  - type: absent
//	    path: Medicine-Order/Active/o1
//	  - type: notification_count
//	    action: MedicineOrderAcceptedAction
//	    target: alice-token
//	    count: 1
//
// # Assertion Types
//
//   - exists: a value is stored at path
//   - absent: nothing is stored at path
//   - equals: the value at path equals value
//   - notification_count: successful deliveries of action (optionally to
//     target) number exactly count
//   - notification_order: the first successful delivery of each action
//     happens in the listed order
//   - token_absent: the recipient at path (User/alice) no longer holds the
//     registration token target
//   - write_count: change log entries at path (all paths when empty) made
//     by steps and handlers number exactly count
//
// # Deterministic Testing
//
// After each step the harness waits until the router is idle before running
// the next one. The trace lists, per step, the step itself, the changes it
// caused in commit order and the deliveries it caused sorted by target, so
// identical scenarios produce byte-identical golden snapshots.
package harness
