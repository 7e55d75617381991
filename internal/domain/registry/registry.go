package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/id"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// MaxIDAttempts bounds the random draws made for one new service ID
const MaxIDAttempts = 100

var (
	ErrNotFound            = errors.New("service not found")
	ErrGenerationExhausted = errors.New("could not allocate a unique service id")
	ErrValidation          = errors.New("service validation failed")
)

// IDSource produces candidate service IDs
type IDSource interface {
	Draw() (string, error)
}

// GenerateID draws candidates from src until one is not taken.
// A failed draw counts as a collision. Gives up with ErrGenerationExhausted
// after MaxIDAttempts draws.
func GenerateID(src IDSource, taken func(string) bool) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		candidate, err := src.Draw()
		if err != nil {
			lastErr = err
			continue
		}
		if !taken(candidate) {
			return candidate, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w after %d attempts (last draw error: %v)", ErrGenerationExhausted, MaxIDAttempts, lastErr)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, MaxIDAttempts)
}

// Registry holds service definitions keyed by ID
type Registry struct {
	mu       sync.RWMutex
	services map[string]types.Service
	ids      IDSource
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// New creates an empty registry drawing IDs from crypto/rand
func New(logger *zap.Logger) *Registry {
	return NewWithIDSource(logger, id.NewAlnumGenerator())
}

// NewWithIDSource creates an empty registry with a custom ID source
func NewWithIDSource(logger *zap.Logger, ids IDSource) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		services: make(map[string]types.Service),
		ids:      ids,
		logger:   logger,
	}
}

// WithMetrics sets the metrics collector
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	r.reportSize()
	return r
}

// Create validates svc, allocates an ID and stores it.
// The map is left untouched on failure.
func (r *Registry) Create(svc types.Service) (string, error) {
	if err := svc.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	newID, err := GenerateID(r.ids, func(candidate string) bool {
		_, exists := r.services[candidate]
		return exists
	})
	if err != nil {
		r.logger.Error("Service id allocation failed",
			zap.Int("registry_size", len(r.services)),
			zap.Error(err),
		)
		return "", err
	}

	stored := svc.Clone()
	stored.ID = newID
	r.services[newID] = stored
	r.reportSizeLocked()

	r.logger.Info("Service created", zap.String("service_id", newID), zap.String("name", stored.Name))
	return newID, nil
}

// Get returns a copy of the service with the given ID
func (r *Registry) Get(serviceID string) (types.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[serviceID]
	if !ok {
		return types.Service{}, fmt.Errorf("%w: %s", ErrNotFound, serviceID)
	}
	return svc.Clone(), nil
}

// List returns copies of all services ordered by ID
func (r *Registry) List() []types.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Update merges patch over the stored service, validates the merged result,
// and replaces the stored value only when it is valid.
func (r *Registry) Update(serviceID string, patch types.ServicePatch) (types.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.services[serviceID]
	if !ok {
		return types.Service{}, fmt.Errorf("%w: %s", ErrNotFound, serviceID)
	}

	merged := patch.Apply(current)
	merged.ID = serviceID
	if err := merged.Validate(); err != nil {
		return types.Service{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	r.services[serviceID] = merged
	r.logger.Info("Service updated", zap.String("service_id", serviceID))
	return merged.Clone(), nil
}

// Remove deletes the service and returns the removed definition
func (r *Registry) Remove(serviceID string) (types.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[serviceID]
	if !ok {
		return types.Service{}, fmt.Errorf("%w: %s", ErrNotFound, serviceID)
	}
	delete(r.services, serviceID)
	r.reportSizeLocked()

	r.logger.Info("Service removed", zap.String("service_id", serviceID))
	return svc, nil
}

// Len returns the number of registered services
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Snapshot returns a copy of the whole map
func (r *Registry) Snapshot() map[string]types.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]types.Service, len(r.services))
	for k, svc := range r.services {
		out[k] = svc.Clone()
	}
	return out
}

// Replace swaps the whole map, used when restoring from a store
func (r *Registry) Replace(services map[string]types.Service) {
	next := make(map[string]types.Service, len(services))
	for k, svc := range services {
		stored := svc.Clone()
		stored.ID = k
		next[k] = stored
	}

	r.mu.Lock()
	r.services = next
	r.reportSizeLocked()
	r.mu.Unlock()
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var remote, local, unconfigured int
	for _, svc := range r.services {
		switch svc.Backend().(type) {
		case types.RemoteEndpoint:
			remote++
		case types.LocalArtifact:
			local++
		default:
			unconfigured++
		}
	}

	return map[string]interface{}{
		"total_services": len(r.services),
		"backends": map[string]int{
			"remote":       remote,
			"local":        local,
			"unconfigured": unconfigured,
		},
	}
}

func (r *Registry) reportSize() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.reportSizeLocked()
}

func (r *Registry) reportSizeLocked() {
	if r.metrics != nil {
		r.metrics.SetRegistryServices(len(r.services))
	}
}
