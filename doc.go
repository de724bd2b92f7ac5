// Package sensorstream keeps building sensor metadata in a shared cache and
// republishes live sensor readings, enriched with that metadata, to one
// broker topic per building.
//
// # Architecture
//
// Two pipelines share the metadata cache and can run in separate processes
// (role cache, role publisher) or in one (role all):
//
//	gateway listing ──FetchLoop──▶ queue ──Consumer──▶ metadata cache
//	                                                        │
//	gateway websocket ──Subscriber──▶ queue ──Publisher ◀───┘──▶ JetStream
//
// The cache pipeline pages through the gateway metadata listing every few
// seconds. Sensor names are parsed into building, floor, room, quantity and
// location, and written to the cache. An existing record keeps its unit of
// measure.
//
// The publisher pipeline subscribes to live readings over a websocket. Each
// reading is joined with its cached record, stamped with the value and the
// time it was shared, and published to the topic of its building. Readings
// for sensors that are not cached yet are skipped.
//
// # Packages
//
//   - sensor: naming grammar, records, building topics
//   - gira: gateway metadata listing client
//   - metadata: cache interface with memory, Redis and JetStream KV backends
//   - seed: CSV import of known sensor metadata
//   - processor/cachefill: fetch loop and cache consumer
//   - input/live: websocket subscriber
//   - processor/enrich: enrichment publisher
//   - output/broker: JetStream stream publisher
//   - config, errors, health, metric, natsclient, pkg/queue, pkg/retry, pkg/tlsutil: shared infrastructure
//
// The sensorstream command wires them together; gira-smoketest checks a
// gateway connection from the command line.
package sensorstream
