package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error produced outside a handler's own
// JSON response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func errorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorResponse{Success: false, Message: message})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}
