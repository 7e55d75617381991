package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/utils"
)

// ListServices lists all registered services
func (h *Handlers) ListServices(c *gin.Context) {
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), h.registry.List())
}

// GetService returns one service definition
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), svc)
}

// CreateService registers a new service and returns its id
func (h *Handlers) CreateService(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		fail(c, err)
		return
	}
	if _, err := decodeObject(body); err != nil {
		fail(c, err)
		return
	}

	var svc types.Service
	if err := sonic.Unmarshal(body, &svc); err != nil {
		fail(c, fmt.Errorf("%w: %v", types.ErrInvalidService, err))
		return
	}
	svc.ID = ""

	serviceID, err := h.registry.Create(svc)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, http.StatusText(http.StatusCreated), types.CreatedService{ID: serviceID})
}

// PatchService applies a partial update
func (h *Handlers) PatchService(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		fail(c, err)
		return
	}

	patch, err := types.DecodePatch(body)
	if err != nil {
		fail(c, err)
		return
	}

	svc, err := h.registry.Update(c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), svc)
}

// DeleteService removes a service and returns the removed definition
func (h *Handlers) DeleteService(c *gin.Context) {
	svc, err := h.registry.Remove(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), svc)
}

// InvokeService dispatches the request body to the service's backend.
// The envelope always carries the ServiceOutput; its status follows the failure cause.
func (h *Handlers) InvokeService(c *gin.Context) {
	svc, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	body, err := h.readBody(c)
	if err != nil {
		fail(c, err)
		return
	}

	raw := map[string]interface{}{}
	if len(bytes.TrimSpace(body)) > 0 {
		if raw, err = decodeObject(body); err != nil {
			fail(c, err)
			return
		}
	}

	out := h.dispatcher.Dispatch(c.Request.Context(), svc, raw)
	if !out.Succeeded() {
		status := StatusFor(out.Cause)
		h.logger.Info("Service invocation failed",
			zap.String("service_id", svc.ID),
			zap.Int("status", status),
			zap.Strings("errors", out.Errors),
		)
		respond(c, status, http.StatusText(status), out)
		return
	}
	respond(c, http.StatusOK, http.StatusText(http.StatusOK), out)
}

func (h *Handlers) readBody(c *gin.Context) ([]byte, error) {
	return readLimited(c, h.bodies)
}

// readLimited reads the request body, failing once it exceeds the validator's limit
func readLimited(c *gin.Context, bodies *utils.JSONSizeValidator) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	limit := int64(bodies.MaxSize())
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if err := bodies.ValidateSize(body); err != nil {
		return nil, err
	}
	return body, nil
}

// decodeObject parses body as a JSON object within the nesting limit
func decodeObject(body []byte) (map[string]interface{}, error) {
	var doc interface{}
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyNotObject, err)
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, errBodyNotObject
	}
	if err := utils.ValidateJSONDepth(obj, utils.MaxJSONDepth); err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyNotObject, err)
	}
	return obj, nil
}
