package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/dispatch"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/registry"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/artifact"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/providers/remote"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/utils"
)

// StatusLoopDetected is returned when a request would call back into this process
const StatusLoopDetected = http.StatusLoopDetected

var errBodyNotObject = errors.New("request body must be a JSON object")

// StatusFor maps a domain error to its HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrGenerationExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrValidation),
		errors.Is(err, types.ErrInvalidService),
		errors.Is(err, types.ErrInvalidPatch),
		errors.Is(err, dispatch.ErrNoBackend),
		errors.Is(err, artifact.ErrPrediction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, remote.ErrLoopbackDetected):
		return StatusLoopDetected
	case errors.Is(err, remote.ErrInvalidEndpoint), errors.Is(err, errBodyNotObject):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, remote.ErrRemoteStatus),
		errors.Is(err, remote.ErrRemoteTransport),
		errors.Is(err, artifact.ErrArtifactLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respond writes the envelope with the given status
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, types.NewResponse(status, message, data))
}

// fail writes the envelope for err with no data
func fail(c *gin.Context, err error) {
	status := StatusFor(err)
	respond(c, status, err.Error(), nil)
}
