// Package config loads the sensorstream process configuration.
//
// Settings are layered, each layer overriding the previous one:
//
//  1. Defaults()
//  2. JSON or YAML files added with AddLayer, in order
//  3. dotenv files added with AddEnvFile (existing variables win)
//  4. the process environment
//
// The environment keeps the variable names of earlier deployments
// (CONNECTOR_SOURCE_API_URL, SOURCE_API_USERNAME, SOURCE_API_PASSWORD,
// SOURCE_API_WS_URL, CACHE_TTL, LOGGING_LEVEL, REDIS_ADDR, NATS_URLS,
// SENSOR_METADATA_CSV) alongside SENSORSTREAM_* variables for newer settings.
// Secrets are only read from the environment and never serialised.
//
// Durations in files are strings such as "5s" or "2m".
//
// # Basic Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/sensorstream.yaml")
//	loader.AddEnvFile(".env")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		// every loading and validation error is fatal
//	}
package config
