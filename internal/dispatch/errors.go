package dispatch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/agentoven/ragserve/internal/project"
	"github.com/agentoven/ragserve/internal/store"
)

// RequestError is a configuration or client error raised before any model
// call. Status is an HTTP 4xx code.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// BadRequest builds a 400 RequestError.
func BadRequest(format string, args ...interface{}) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// ErrRouterCycle is returned when router recursion revisits a project.
var ErrRouterCycle = errors.New("router cycle detected")

// Status maps an error from the inference core to an HTTP status.
func Status(err error) int {
	var reqErr *RequestError
	var nf *store.ErrNotFound
	var exists *store.ErrAlreadyExists
	var invalid *project.ValidationError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.Status
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &exists):
		return http.StatusConflict
	case errors.As(err, &invalid), errors.Is(err, ErrRouterCycle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
