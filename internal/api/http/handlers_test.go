package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/dispatch"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/registry"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/artifact"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/remote"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/utils"
)

const irisTree = `{
  "kind": "decision_tree",
  "n_features": 4,
  "classes": ["setosa", "versicolor", "virginica"],
  "features": [
    {"name": "sepal_length"}, {"name": "sepal_width"},
    {"name": "petal_length"}, {"name": "petal_width"}
  ],
  "tree": {
    "children_left":  [1, -1, 3, -1, -1],
    "children_right": [2, -1, 4, -1, -1],
    "feature":        [2, -2, 3, -2, -2],
    "threshold":      [2.45, -2, 1.75, -2, -2],
    "value": [[50, 50, 50], [50, 0, 0], [0, 50, 50], [0, 49, 5], [0, 1, 45]]
  }
}`

const setosaBody = `{"petal_width": 0.2, "sepal_length": 5.1, "sepal_width": 3.5, "petal_length": 1.4, "extra": 1}`

type envelope struct {
	Message    string          `json:"message"`
	StatusCode int             `json:"status-code"`
	Data       json.RawMessage `json:"data"`
}

type serviceOutput struct {
	InputPayload map[string]interface{} `json:"input_payload"`
	Output       map[string]interface{} `json:"output"`
	Errors       []string               `json:"errors"`
}

type hub struct {
	router   *gin.Engine
	registry *registry.Registry
	metrics  *monitoring.Metrics
	models   string
}

// newHub builds the API with a detector advertising selfAddr
func newHub(t *testing.T, selfAddr string) *hub {
	t.Helper()
	gin.SetMode(gin.TestMode)

	models := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(models, "iris.json"), []byte(irisTree), 0o644))

	metrics := monitoring.NewMetrics()
	t.Cleanup(metrics.Close)

	reg := registry.New(nil).WithMetrics(metrics)

	host, port := "hub.invalid", "1"
	if selfAddr != "" {
		u, err := url.Parse(selfAddr)
		require.NoError(t, err)
		host, port = u.Hostname(), u.Port()
	}

	cfg := remote.DefaultClientConfig()
	cfg.Timeout = 2 * time.Second
	client := remote.NewClient(cfg)
	invoker := remote.NewInvoker(client, remote.NewLoopbackDetector(host, port), "instance-test", nil).
		WithMetrics(metrics)
	runner := artifact.NewRunner(models, true, nil)
	dispatcher := dispatch.New(invoker, runner, nil).WithMetrics(metrics)

	router := gin.New()
	RegisterRoutes(router, NewHandlers(reg, dispatcher, metrics, client, "instance-test", nil))

	return &hub{router: router, registry: reg, metrics: metrics, models: models}
}

func (h *hub) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func irisService() types.Service {
	return types.Service{
		Name:        "iris",
		PathToModel: "iris.json",
		Parameters: []types.ServiceParameter{
			{Name: "sepal_length"}, {Name: "sepal_width"},
			{Name: "petal_length"}, {Name: "petal_width"},
		},
	}
}

func TestRoot(t *testing.T) {
	h := newHub(t, "")

	w, _ := h.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"online"`)
}

func TestServiceLifecycle(t *testing.T) {
	h := newHub(t, "")

	w, env := h.do(t, http.MethodPost, "/services",
		`{"name": "iris", "parameters": [{"name": "petal_length"}], "path_to_model": "iris.json"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "Created", env.Message)

	var created types.CreatedService
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.ID, 6)

	w, env = h.do(t, http.MethodGet, "/services/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var svc types.Service
	require.NoError(t, json.Unmarshal(env.Data, &svc))
	assert.Equal(t, created.ID, svc.ID)
	assert.Equal(t, "iris", svc.Name)

	w, env = h.do(t, http.MethodGet, "/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []types.Service
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	w, env = h.do(t, http.MethodPatch, "/services/"+created.ID, `{"name": "iris-v2", "id": "ignored"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &svc))
	assert.Equal(t, "iris-v2", svc.Name)
	assert.Equal(t, created.ID, svc.ID)
	assert.Equal(t, "iris.json", svc.PathToModel)

	w, env = h.do(t, http.MethodDelete, "/services/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &svc))
	assert.Equal(t, "iris-v2", svc.Name)

	w, env = h.do(t, http.MethodGet, "/services/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
	assert.Equal(t, 0, h.registry.Len())
}

func TestCreateServiceIgnoresClientID(t *testing.T) {
	h := newHub(t, "")

	w, env := h.do(t, http.MethodPost, "/services", `{"id": "abcdef", "name": "x"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created types.CreatedService
	require.NoError(t, json.Unmarshal(env.Data, &created))
	_, err := h.registry.Get(created.ID)
	require.NoError(t, err)
}

func TestCreateServiceRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `{"name":`, http.StatusBadRequest},
		{"array body", `[1, 2]`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"parameter without name", `{"name": "x", "parameters": [{"description": "d"}]}`, http.StatusUnprocessableEntity},
		{"both backends", `{"name": "x", "executable_url": "http://a/b", "path_to_model": "m.json"}`, http.StatusUnprocessableEntity},
		{"wrong field type", `{"name": 42}`, http.StatusUnprocessableEntity},
		{"duplicate parameters", `{"parameters": [{"name": "a"}, {"name": "a"}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHub(t, "")

			w, env := h.do(t, http.MethodPost, "/services", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want, env.StatusCode)
			assert.NotEmpty(t, env.Message)
			assert.Equal(t, 0, h.registry.Len())
		})
	}
}

func TestCreateServiceTooLarge(t *testing.T) {
	h := newHub(t, "")

	body := fmt.Sprintf(`{"name": "x", "description": %q}`, strings.Repeat("a", utils.MaxPayloadSize))
	w, _ := h.do(t, http.MethodPost, "/services", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, h.registry.Len())
}

func TestPatchServiceRejected(t *testing.T) {
	h := newHub(t, "")
	serviceID, err := h.registry.Create(irisService())
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown service", "/services/zzzzzz", `{"name": "x"}`, http.StatusNotFound},
		{"wrong field type", "/services/" + serviceID, `{"name": ["x"]}`, http.StatusUnprocessableEntity},
		{"not an object", "/services/" + serviceID, `"x"`, http.StatusUnprocessableEntity},
		{"merged result invalid", "/services/" + serviceID, `{"executable_url": "http://a/b"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := h.do(t, http.MethodPatch, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	stored, err := h.registry.Get(serviceID)
	require.NoError(t, err)
	assert.Equal(t, irisService().Name, stored.Name)
	assert.Empty(t, stored.ExecutableURL)
}

func TestPatchSwitchesBackend(t *testing.T) {
	h := newHub(t, "")
	serviceID, err := h.registry.Create(irisService())
	require.NoError(t, err)

	w, _ := h.do(t, http.MethodPatch, "/services/"+serviceID,
		`{"executable_url": "http://models.internal/iris", "path_to_model": ""}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := h.registry.Get(serviceID)
	require.NoError(t, err)
	assert.Equal(t, types.RemoteEndpoint{URL: "http://models.internal/iris"}, stored.Backend())
}

func TestDeleteUnknownService(t *testing.T) {
	h := newHub(t, "")

	w, env := h.do(t, http.MethodDelete, "/services/zzzzzz", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, env.Message, "service not found")
}

func TestInvokeLocalArtifact(t *testing.T) {
	h := newHub(t, "")
	serviceID, err := h.registry.Create(irisService())
	require.NoError(t, err)

	for _, path := range []string{"/services/" + serviceID, "/services/" + serviceID + "/invoke"} {
		t.Run(path, func(t *testing.T) {
			w, env := h.do(t, http.MethodPost, path, setosaBody)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "OK", env.Message)

			var out serviceOutput
			require.NoError(t, json.Unmarshal(env.Data, &out))
			assert.Empty(t, out.Errors)
			assert.Equal(t, "setosa", out.Output["predicted-class-name"])
			assert.Equal(t, 0.0, out.Output["predicted-class-id"])
			assert.NotContains(t, out.InputPayload, "extra")

			// declared order, not request order
			assert.Contains(t, string(env.Data),
				`"input_payload":{"sepal_length":5.1,"sepal_width":3.5,"petal_length":1.4,"petal_width":0.2}`)
		})
	}
}

func TestInvokeLocalArtifactFeatureMismatch(t *testing.T) {
	h := newHub(t, "")
	svc := irisService()
	svc.Parameters = svc.Parameters[:3]
	serviceID, err := h.registry.Create(svc)
	require.NoError(t, err)

	w, env := h.do(t, http.MethodPost, "/services/"+serviceID, setosaBody)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var out serviceOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "X has 3 features, but model expects 4")
	assert.Empty(t, out.Output)
}

func TestInvokeMissingArtifact(t *testing.T) {
	h := newHub(t, "")
	svc := irisService()
	svc.PathToModel = "missing.json"
	serviceID, err := h.registry.Create(svc)
	require.NoError(t, err)

	w, _ := h.do(t, http.MethodPost, "/services/"+serviceID, setosaBody)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInvokeRemote(t *testing.T) {
	var (
		calls      int32
		instanceID atomic.Value
		received   atomic.Value
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		instanceID.Store(r.Header.Get(remote.HeaderInstanceID))

		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		received.Store(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label": "setosa", "score": 0.97}`))
	}))
	defer upstream.Close()

	h := newHub(t, "")
	serviceID, err := h.registry.Create(types.Service{
		Name:          "remote iris",
		ExecutableURL: upstream.URL + "/iris",
		Parameters:    []types.ServiceParameter{{Name: "A"}, {Name: "B"}},
	})
	require.NoError(t, err)

	w, env := h.do(t, http.MethodPost, "/services/"+serviceID, `{"B": 2, "A": 1, "C": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out serviceOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Empty(t, out.Errors)
	assert.Equal(t, map[string]interface{}{"label": "setosa", "score": 0.97}, out.Output)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "instance-test", instanceID.Load())
	assert.Equal(t, map[string]interface{}{"A": 1.0, "B": 2.0}, received.Load())
}

func TestInvokeRemoteFailureStatuses(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	h := newHub(t, "")
	serviceID, err := h.registry.Create(types.Service{Name: "broken", ExecutableURL: upstream.URL})
	require.NoError(t, err)

	w, env := h.do(t, http.MethodPost, "/services/"+serviceID, `{}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, http.StatusBadGateway, env.StatusCode)

	var out serviceOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "500")
	assert.Empty(t, out.Output)
}

func TestInvokeLoopbackRejected(t *testing.T) {
	var calls int32
	self := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer self.Close()

	h := newHub(t, self.URL)
	serviceID, err := h.registry.Create(types.Service{Name: "self", ExecutableURL: self.URL + "/services/abcdef"})
	require.NoError(t, err)

	w, env := h.do(t, http.MethodPost, "/services/"+serviceID, `{}`)
	assert.Equal(t, http.StatusLoopDetected, w.Code)
	assert.Equal(t, "Loop Detected", env.Message)

	var out serviceOutput
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "deadlock")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestInvokeRejected(t *testing.T) {
	h := newHub(t, "")
	bare, err := h.registry.Create(types.Service{Name: "no backend"})
	require.NoError(t, err)
	badURL, err := h.registry.Create(types.Service{Name: "bad url", ExecutableURL: "not a url"})
	require.NoError(t, err)
	iris, err := h.registry.Create(irisService())
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown service", "/services/zzzzzz", `{}`, http.StatusNotFound},
		{"no backend", "/services/" + bare, `{}`, http.StatusUnprocessableEntity},
		{"invalid endpoint", "/services/" + badURL, `{}`, http.StatusBadRequest},
		{"array body", "/services/" + iris, `[1]`, http.StatusBadRequest},
		{"malformed body", "/services/" + iris, `{"a":`, http.StatusBadRequest},
		{"non numeric feature", "/services/" + iris,
			`{"sepal_length": "wide", "sepal_width": 1, "petal_length": 1, "petal_width": 1}`,
			http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := h.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, tt.want, env.StatusCode)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHub(t, "")
	_, err := h.registry.Create(irisService())
	require.NoError(t, err)

	w, _ := h.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var health struct {
		Status   string                 `json:"status"`
		Instance string                 `json:"instance_id"`
		Registry map[string]interface{} `json:"service_registry"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "instance-test", health.Instance)
	assert.Equal(t, 1.0, health.Registry["total_services"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "servicehub_registry_services 1")

	w, _ = h.do(t, http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary MetricsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1.0, summary.Registry["total_services"])
	assert.NotNil(t, summary.Breakers)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: abc", registry.ErrNotFound), http.StatusNotFound},
		{registry.ErrGenerationExhausted, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: x", registry.ErrValidation), http.StatusUnprocessableEntity},
		{types.ErrInvalidService, http.StatusUnprocessableEntity},
		{types.ErrInvalidPatch, http.StatusUnprocessableEntity},
		{dispatch.ErrNoBackend, http.StatusUnprocessableEntity},
		{artifact.ErrPrediction, http.StatusUnprocessableEntity},
		{remote.ErrLoopbackDetected, http.StatusLoopDetected},
		{remote.ErrInvalidEndpoint, http.StatusBadRequest},
		{utils.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{remote.ErrRemoteStatus, http.StatusBadGateway},
		{remote.ErrRemoteTransport, http.StatusBadGateway},
		{artifact.ErrArtifactLoad, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
