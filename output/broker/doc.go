// Package broker publishes enriched sensor records to NATS JetStream.
//
// Every building has its own subject, "house_1" through "house_10", optionally
// behind a configured prefix ("sensors.house_1"). Provision creates or
// updates the stream that captures those subjects. Publish waits for the
// stream's acknowledgement before returning, and every message carries a
// unique Nats-Msg-Id so that a re-send inside the stream's duplicate window
// is stored only once.
package broker
