// Package types provides the shared data structures of the service hub.
//
// Core Types:
//   - Service, ServiceParameter: A registered predictive capability and its inputs
//   - Backend: LocalArtifact or RemoteEndpoint, derived from a Service
//   - ServicePatch: Partial update applied by the registry
//   - Payload: Ordered feature mapping sent to a backend
//   - ServiceOutput: Normalized dispatch result
//   - Response: REST envelope
//
// Example Usage:
//
//	svc := types.Service{
//	    Name:        "iris",
//	    Parameters:  []types.ServiceParameter{{Name: "petal_length"}, {Name: "petal_width"}},
//	    PathToModel: "iris.json",
//	}
//	if err := svc.Validate(); err != nil {
//	    return err
//	}
package types
