/*
Package resilience provides circuit breakers for remote service endpoints.

# Overview

A Breaker stops sending traffic to an endpoint that keeps failing, and lets
a limited number of probe requests through once its cool-down expires. A Set
hands out one breaker per key (the remote host), created on first use.

# Usage

	breakers := resilience.NewSet(resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(10),
	})

	err := breakers.Get("models.internal:8080").Do(func() error {
		return call()
	})

# States

	Closed --[trip]-> Open --[timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                         |
	                                     [failure]-> Open
*/
package resilience
