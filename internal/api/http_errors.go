package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
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
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondDomainError maps err to a status. Internal failures are logged and
// answered with fallback instead of the raw error.
func (s *Server) respondDomainError(w http.ResponseWriter, err error, fallback string) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(fallback, "error", err)
		respondError(w, status, fallback)
		return
	}
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		respondError(w, status, domErr.Message)
		return
	}
	respondError(w, status, err.Error())
}
