// Package http provides the REST handlers of the hub and of the demo model server.
//
// Every answer is wrapped in a {"message", "status-code", "data"} envelope.
// Domain errors map to statuses through StatusFor.
package http
