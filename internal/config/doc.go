// Package config loads the storekit CLI configuration.
//
// Configuration is resolved in layers, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The TOML file (storekit.toml, or the path given with --config)
//  3. STOREKIT_* environment variables
//
// A minimal file:
//
//	[log]
//	level = "debug"
//	format = "logfmt"
//
//	[store]
//	recover_from_panic = true
//	metrics = true
//	unobserved = "log"
//
//	[script]
//	timeout = "2s"
//
// The matching environment variables are STOREKIT_LOG_LEVEL,
// STOREKIT_LOG_FORMAT, STOREKIT_STORE_RECOVER_FROM_PANIC,
// STOREKIT_STORE_METRICS, STOREKIT_STORE_UNOBSERVED and
// STOREKIT_SCRIPT_TIMEOUT.
package config
