package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// ErrStoreCorrupted is returned when the durable store cannot be trusted
var ErrStoreCorrupted = errors.New("service store corrupted")

// Store is the durable copy of the registry
type Store interface {
	Load() (map[string]types.Service, error)
	Save(services map[string]types.Service) error
}

// FileStore keeps the registry as one JSON document mapping id -> service
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the store. A missing file yields an empty map and no error.
// Any parse or schema failure yields ErrStoreCorrupted and no entries.
func (s *FileStore) Load() (map[string]types.Service, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]types.Service{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	var raw map[string]types.Service
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreCorrupted, err)
	}
	if raw == nil {
		// a literal "null" document
		return nil, fmt.Errorf("%w: document is not an object", ErrStoreCorrupted)
	}

	services := make(map[string]types.Service, len(raw))
	for key, svc := range raw {
		if key == "" {
			return nil, fmt.Errorf("%w: empty service id", ErrStoreCorrupted)
		}
		if err := svc.ValidateSchema(); err != nil {
			return nil, fmt.Errorf("%w: entry %s: %v", ErrStoreCorrupted, key, err)
		}
		svc.ID = key
		services[key] = svc
	}
	return services, nil
}

// Save writes every entry, replacing the previous document atomically
func (s *FileStore) Save(services map[string]types.Service) error {
	if services == nil {
		services = map[string]types.Service{}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(services, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal services: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// Restore replaces the registry contents with the store's.
// Failures are logged and leave the registry empty.
func (r *Registry) Restore(store Store) int {
	services, err := store.Load()
	if err != nil {
		r.logger.Error("Failed to load service store, starting with an empty registry", zap.Error(err))
		services = map[string]types.Service{}
	}

	r.Replace(services)
	r.logger.Info("Service registry restored", zap.Int("services", len(services)))
	return len(services)
}

// Persist writes the registry to the store. Failures are logged, not returned.
func (r *Registry) Persist(store Store) bool {
	snapshot := r.Snapshot()
	if err := store.Save(snapshot); err != nil {
		r.logger.Error("Failed to save service store", zap.Error(err))
		return false
	}

	r.logger.Info("Service registry saved", zap.Int("services", len(snapshot)))
	return true
}
