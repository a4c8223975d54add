package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/logger"
)

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrVectorIndexUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler writes {"error": msg}. Server errors are logged and their
// detail is withheld from the client.
func errorHandler(err error, c echo.Context) {
	code := statusOf(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}

	req := c.Request()
	if code >= http.StatusInternalServerError {
		logger.Error("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if code == http.StatusInternalServerError {
			msg = http.StatusText(code)
		}
	} else {
		logger.Debug("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	}

	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}
