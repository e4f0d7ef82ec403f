// Package payfast talks to the PayFast payment gateway: it signs and submits
// payment requests and validates Instant Transaction Notifications (ITN).
//
// Two encoding rules exist and are deliberately kept apart:
//
//   - Sign (outbound): parameters in insertion order, values escaped per
//     RFC 3986 (space becomes %20).
//   - SignNotification (inbound): parameters sorted by key, keys and values
//     form-encoded (space becomes +).
//
// Both append "&passphrase=..." when a passphrase is configured and return
// the lower-case hex MD5 of the result.
package payfast
