package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/format"
)

// maxArtifactSize bounds the decompressed size of one artifact
const maxArtifactSize = 64 << 20

type cachedArtifact struct {
	artifact *Artifact
	modTime  time.Time
	size     int64
}

// Runner loads artifacts from disk and runs them
type Runner struct {
	root   string
	cache  bool
	logger *zap.Logger

	mu     sync.Mutex
	loaded map[string]cachedArtifact
}

// NewRunner creates a runner resolving relative paths against root.
// With cache enabled, compiled artifacts are kept until their file changes.
func NewRunner(root string, cache bool, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		root:   root,
		cache:  cache,
		logger: logger,
		loaded: make(map[string]cachedArtifact),
	}
}

// Run loads the artifact at path and predicts from x
func (r *Runner) Run(ctx context.Context, path string, x []float64) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}

	a, err := r.Load(path)
	if err != nil {
		return nil, err
	}
	return a.Predict(x)
}

// Load returns the compiled artifact at path
func (r *Runner) Load(path string) (*Artifact, error) {
	resolved := r.resolve(path)

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrArtifactLoad, path)
	}

	if r.cache {
		r.mu.Lock()
		cached, ok := r.loaded[resolved]
		r.mu.Unlock()
		if ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
			return cached.artifact, nil
		}
	}

	a, err := LoadFile(resolved)
	if err != nil {
		r.logger.Warn("Failed to load artifact", zap.String("path", resolved), zap.Error(err))
		return nil, err
	}

	if r.cache {
		r.mu.Lock()
		r.loaded[resolved] = cachedArtifact{artifact: a, modTime: info.ModTime(), size: info.Size()}
		r.mu.Unlock()
	}
	r.logger.Debug("Artifact loaded", zap.String("path", resolved), zap.String("kind", fmt.Sprintf("%T", a.Model)))
	return a, nil
}

// Cached returns the number of cached artifacts
func (r *Runner) Cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaded)
}

func (r *Runner) resolve(path string) string {
	if r.root == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.root, path)
}

// LoadFile reads, decompresses, decodes and compiles one artifact file
func LoadFile(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}

	data, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactLoad, filepath.Base(path), err)
	}

	if !isText(data) {
		return nil, fmt.Errorf("%w: %s: unsupported content type %s",
			ErrArtifactLoad, filepath.Base(path), mimetype.Detect(data).String())
	}

	var doc Document
	if err := format.DecodeFile(path, data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	return Compile(doc)
}

func decompress(raw []byte) ([]byte, error) {
	mt := mimetype.Detect(raw)

	var reader io.Reader
	switch {
	case mt.Is("application/gzip"):
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	case mt.Is("application/zstd"):
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return raw, nil
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("decompressed artifact exceeds %d bytes", maxArtifactSize)
	}
	return data, nil
}

func isText(data []byte) bool {
	for mt := mimetype.Detect(data); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
