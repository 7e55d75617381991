// Package remote invokes services hosted on another instance over HTTP.
//
// Endpoints are validated, checked against this server's own advertised
// address, then called with a JSON POST through a rate limited, retrying
// client guarded by a circuit breaker per host.
package remote
