// Package notify delivers push notifications to users and pharmacies.
//
// A Dispatcher resolves recipients to the device tokens stored under
// <Group>/<name>/registrationToken, sends one message through a Transport and
// prunes tokens the transport reports as permanently invalid. Only the codes
// CodeInvalidToken and CodeNotRegistered remove a token; every other failure
// is logged and the token retained.
//
// The stored token field takes one of three shapes:
//
//	"registrationToken": "tok"                      // single token
//	"registrationToken": {"tok": true}              // set keyed by token
//	"registrationToken": {"phone": "tok"}           // named devices
//
// A pruned token is removed at the exact path it was read from.
package notify
