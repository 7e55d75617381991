// Package server assembles the hub and the demo model server from configuration
// and runs them with graceful shutdown.
package server
