// Package enrich joins live readings with cached sensor metadata and
// publishes the result to the building's broker topic.
//
// For each reading the Publisher looks up the sensor's Record. A miss is
// dropped with a "metadata not yet cached" log entry, since the cache fills
// independently and a later reading will find it. A hit is copied, stamped
// with last_shared_value and last_shared_datetime (Unix seconds) and
// published as JSON to lower(building) with spaces replaced by underscores,
// for example "House 9" to "house_9". Publish waits for the broker's
// acknowledgement before the next reading is taken.
//
// A publish error drops only that reading. Losing the broker connection, or
// a panic while processing, ends the processing loop; Run restarts it after a
// fixed delay, at most MaxAttempts times over the process lifetime, and then
// gives up with a fatal error.
package enrich
