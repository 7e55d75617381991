// Package dispatch executes a service call against the backend the service
// declares and normalizes the outcome into a ServiceOutput.
package dispatch
