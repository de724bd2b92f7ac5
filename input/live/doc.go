// Package live subscribes to the home server's websocket and turns its push
// messages into numeric readings.
//
// A Subscriber walks a small state machine per connection:
//
//	Disconnected -> Connecting -> Subscribed -> Streaming
//
// Connecting dials with a Basic Authorization header and certificate
// verification disabled. Subscribed follows the subscribe request. The first
// inbound message is the server's snapshot of last values and is discarded,
// after which the connection is Streaming. Any failure returns to
// Disconnected and the subscriber redials after a fixed delay.
//
// Push messages look like:
//
//	{"type":"push","code":0,"subscription":{"key":"CO@9_4_81"},"data":{"value":34.62}}
//
// Messages without a key or value, or whose value is not numeric, are
// dropped. Values are rounded to three decimal places before they are
// queued as Readings.
package live
