// Package main runs a sample gin application instrumented by the monitoring
// agent.
//
// Every request becomes a transaction. Ended transactions are buffered and
// sent to the collector once per data report period.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	MONITOR_LICENSE_KEY=... ./agent -port 8000
//
//	# Development mode (colored logs, debug level)
//	./agent -dev -collector localhost
//
// Signals:
//   - SIGINT, SIGTERM: final harvest, collector shutdown, then exit
package main
