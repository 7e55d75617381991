/*
Package monitoring provides metrics collection for the service hub.

# Overview

Metrics are Prometheus collectors registered on a registry owned by each
Metrics instance, so several servers (or tests) can live in one process.

# Features

- HTTP request metrics (latency, throughput, size)
- Dispatch metrics per backend and outcome
- Remote invocation latency and loopback rejections
- Registry size
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "remote")
	// ... dispatch ...
	timer.Stop("success")
*/
package monitoring
