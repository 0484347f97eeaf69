package api

import (
	"errors"
	"net/http"

	"github.com/flowmetric/assetpulse/internal/core"
)

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatState:
		return http.StatusConflict, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondDomainError maps a service error onto an HTTP status. Errors that
// are not DomainErrors become 500s.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	if status, ok := httpStatusForDomainError(err); ok {
		s.respondError(w, status, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}
