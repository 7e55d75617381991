package http

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/dispatch"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/artifact"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/format"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/utils"
)

// ErrModelNotFound is returned when no artifact matches the requested name
var ErrModelNotFound = errors.New("model not found")

// ModelHandlers serve artifacts from a directory as standalone endpoints.
// A hub service whose executable_url points at one of them is invoked remotely.
type ModelHandlers struct {
	runner *artifact.Runner
	models fs.FS
	bodies *utils.JSONSizeValidator
	logger *zap.Logger
}

// NewModelHandlers serves the artifacts found directly in dir
func NewModelHandlers(dir string, cache bool, logger *zap.Logger) *ModelHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelHandlers{
		runner: artifact.NewRunner(dir, cache, logger),
		models: os.DirFS(dir),
		bodies: utils.NewJSONSizeValidator(utils.MaxPayloadSize),
		logger: logger,
	}
}

// ModelInfo describes one served artifact
type ModelInfo struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Task     string   `json:"task,omitempty"`
	Classes  []string `json:"classes,omitempty"`
	Features []string `json:"features"`
	Error    string   `json:"error,omitempty"`
}

// ListModels describes every artifact in the models directory
func (m *ModelHandlers) ListModels(c *gin.Context) {
	files, err := m.discover("*")
	if err != nil {
		respond(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	infos := make([]ModelInfo, 0, len(files))
	for _, file := range files {
		info := ModelInfo{Name: modelName(file), File: file, Features: []string{}}
		a, err := m.runner.Load(file)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Task = a.Task
			info.Classes = a.Classes
			for _, f := range a.Features {
				info.Features = append(info.Features, f.Name)
			}
		}
		infos = append(infos, info)
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), infos)
}

// Predict runs the named artifact against the request body. Input order
// comes from the artifact's declared features.
func (m *ModelHandlers) Predict(c *gin.Context) {
	name := c.Param("name")
	if err := utils.ValidateID(name, "model name", true); err != nil {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	a, err := m.load(name)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, ErrModelNotFound) {
			status = http.StatusNotFound
		}
		respond(c, status, err.Error(), nil)
		return
	}
	if len(a.Features) == 0 {
		respond(c, http.StatusUnprocessableEntity,
			fmt.Sprintf("model %s declares no features", name), nil)
		return
	}

	body, err := readLimited(c, m.bodies)
	if err != nil {
		fail(c, err)
		return
	}
	raw, err := decodeObject(body)
	if err != nil {
		fail(c, err)
		return
	}

	payload := dispatch.FilterPayload(a.Features, raw)
	if missing := missingFeatures(a, raw); len(missing) > 0 {
		respond(c, http.StatusUnprocessableEntity,
			fmt.Sprintf("missing features: %s", strings.Join(missing, ", ")), nil)
		return
	}

	x, err := artifact.Vectorize(a.Features, payload)
	if err != nil {
		respond(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	out, err := a.Predict(x)
	if err != nil {
		m.logger.Info("Model prediction failed", zap.String("model", name), zap.Error(err))
		respond(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), out)
}

func (m *ModelHandlers) load(name string) (*artifact.Artifact, error) {
	files, err := m.discover(name)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m.runner.Load(files[0])
}

// discover lists artifact files named name.<ext>[.gz|.zst] in lexical order
func (m *ModelHandlers) discover(name string) ([]string, error) {
	matches, err := doublestar.Glob(m.models, name+".*", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to scan models directory: %w", err)
	}

	files := matches[:0]
	for _, match := range matches {
		if _, err := format.KindOf(match); err == nil {
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}

func modelName(file string) string {
	if i := strings.IndexByte(file, '.'); i > 0 {
		return file[:i]
	}
	return file
}

func missingFeatures(a *artifact.Artifact, raw map[string]interface{}) []string {
	var missing []string
	for _, f := range a.Features {
		if _, ok := raw[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
