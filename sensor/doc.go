// Package sensor holds the sensor metadata model: the cached Record, the
// description grammar that produces it and the building-to-topic routing.
// Nothing in this package performs I/O.
package sensor
