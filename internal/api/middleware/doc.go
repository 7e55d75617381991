// Package middleware provides the gin middleware stack for the REST API.
//
// Middleware:
//   - CORS: Cross-origin policy from configured origins
//   - RateLimit / GlobalRateLimit: Token buckets per client IP or process wide
//   - LoopGuard: Rejects requests this same instance sent to itself
package middleware
