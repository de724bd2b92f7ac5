// Package health tracks the state of each running pipeline component.
//
// Components report through a shared Monitor:
//
//	monitor.UpdateHealthy("subscriber", "streaming")
//	monitor.UpdateDegraded("subscriber", "reconnecting")
//	monitor.UpdateError("publisher", err)
//
// AggregateHealth folds every component into one Status for the /health
// endpoint. Error messages are sanitized so gateway URLs, broker addresses
// and credentials never appear in health output.
package health
