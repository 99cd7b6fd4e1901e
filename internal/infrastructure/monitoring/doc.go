/*
Package monitoring provides the agent's own Prometheus metrics.

# Overview

The agent reports application transactions to the collector; this package
covers the agent itself: collector round trips, redirects, session state,
buffered and dropped transactions, and harvest cycles.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	// Time a collector call
	timer := monitoring.NewTimer(metrics, "connect")
	result, err := invoke()
	timer.Stop(err)

	// Instrumented application requests
	router.Use(monitoring.Middleware(metrics))

A nil *Metrics is valid and records nothing.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
