// Package timeouts defines shared timeout constants used across groupgate.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight login checks
// during graceful shutdown.
const Shutdown = 5 * time.Second

// OracleRequest is the default cap on one live membership check against a
// bot API or Redis.
const OracleRequest = 3 * time.Second

// Telemetry caps the final span flush when a command exits.
const Telemetry = 5 * time.Second
