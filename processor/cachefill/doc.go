// Package cachefill keeps the sensor metadata cache in step with the home
// server's metadata listing.
//
// Two loops share an unbounded queue of descriptors:
//
//	FetchLoop  pages through the listing (offset 0, 1000, 2000, ...) until an
//	           empty page, pushing every descriptor as soon as its page
//	           arrives, then sleeps ScanInterval and starts over.
//	Consumer   pops descriptors one at a time, parses their description and
//	           merges the result into the cache, or inserts a new record with
//	           an empty unit of measure.
//
// The consumer is the only writer of parser-derived fields, so a read then
// write per key needs no locking. Both loops stop when their context is
// cancelled.
package cachefill
