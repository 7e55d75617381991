// Package config provides 12-factor configuration for the service hub.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: listen address and the advertised self address used to detect
//     self-invocation (THIS_HOST, THIS_PORT)
//   - Store: durable registry file and seed directory
//   - Artifact: model artifact root and caching
//   - Remote: outbound invocation timeout, retries, rate and breaker
//   - Logging, RateLimit, CORS
//   - Demo: the demo model server
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Server.ListenAddr())
package config
