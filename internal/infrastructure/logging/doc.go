// Package logging wraps log/slog for AirSentinel Core.
//
// One logger is built at startup from the config section and handed down;
// packages derive children with With("component", ...) so every line can
// be traced to its source. Lines always carry service and version.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Secrets (broker passwords, JWT secrets, InfluxDB tokens) never go in a
// log line, truncated or otherwise.
package logging
