package backend

import (
	"errors"
	"net/http"

	"github.com/srdaspradeep-gif/DMsDoc/core"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps an error to an http status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotLoggedIn), errors.Is(err, core.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden), errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var status = statusOf(err)
	var msg = err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
