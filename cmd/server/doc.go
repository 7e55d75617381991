// Package main is the entry point for the ServiceHub server.
//
// ServiceHub keeps a registry of predictive services and dispatches
// invocations to each service's backend: a remote HTTP endpoint or a model
// artifact on local disk.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -db data/db/services.json -seed data/seeds
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, then the registry is saved
package main
