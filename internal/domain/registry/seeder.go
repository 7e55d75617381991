package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/format"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// SeedPattern matches service definition files below the seed directory
var SeedPattern = "**/*.{" + strings.Join(format.Extensions, ",") + "}"

// SeedResult summarizes one seeding pass
type SeedResult struct {
	Loaded  int
	Failed  int
	Skipped bool
}

// Seeder creates services from definition files on a fresh deployment
type Seeder struct {
	registry *Registry
	dir      string
	logger   *zap.Logger
}

// NewSeeder creates a seeder reading definitions from dir
func NewSeeder(registry *Registry, dir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		registry: registry,
		dir:      dir,
		logger:   logger,
	}
}

// Seed loads definitions when the registry is empty. A populated registry
// was restored from the store and already contains any earlier seeds.
func (s *Seeder) Seed() (SeedResult, error) {
	if s.dir == "" {
		return SeedResult{Skipped: true}, nil
	}
	if s.registry.Len() > 0 {
		s.logger.Debug("Registry not empty, skipping seed", zap.Int("services", s.registry.Len()))
		return SeedResult{Skipped: true}, nil
	}

	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Seed directory not found", zap.String("dir", s.dir))
		return SeedResult{Skipped: true}, nil
	}

	files, err := s.discover()
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to scan seed directory: %w", err)
	}

	var result SeedResult
	for _, path := range files {
		serviceID, err := s.seedFile(path)
		if err != nil {
			s.logger.Warn("Failed to seed service", zap.String("file", path), zap.Error(err))
			result.Failed++
			continue
		}
		s.logger.Info("Seeded service", zap.String("file", path), zap.String("service_id", serviceID))
		result.Loaded++
	}

	s.logger.Info("Seeding complete", zap.Int("loaded", result.Loaded), zap.Int("failed", result.Failed))
	return result, nil
}

// discover returns matching files in lexical order so IDs are allocated
// in a stable sequence
func (s *Seeder) discover() ([]string, error) {
	var (
		mu    sync.Mutex
		files []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return nil
		}
		matched, err := doublestar.Match(SeedPattern, filepath.ToSlash(strings.ToLower(rel)))
		if err != nil || !matched {
			return nil
		}

		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (s *Seeder) seedFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var svc types.Service
	if err := format.DecodeFile(path, data, &svc); err != nil {
		return "", err
	}

	// ids in seed files are ignored; the registry allocates its own
	svc.ID = ""
	return s.registry.Create(svc)
}
