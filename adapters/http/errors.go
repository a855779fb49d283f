package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/usecase"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// StatusFor maps an error returned by a handler to a response code and a
// message safe to show to the caller.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, usecase.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, usecase.ErrInvalidRequest), errors.Is(err, usecase.ErrUnknownTool):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrSessionOwnership):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, usecase.ErrToolLoopExhausted), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The assistant took too long to answer. Please try again."
	case errors.Is(err, usecase.ErrModelUnavailable), errors.Is(err, usecase.ErrSpeechUnavailable):
		return http.StatusBadGateway, "The assistant is temporarily unavailable. Please try again."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// NewHTTPErrorHandler renders every error as {"status":"error",...}. The raw
// error text is attached as detail only when exposeErrors is set.
func NewHTTPErrorHandler(exposeErrors bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, message := StatusFor(err)
		logger := log.WithCtx(c.Request().Context()).With(
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.Error(err))
		if code >= http.StatusInternalServerError {
			logger.Error("request failed")
		} else {
			logger.Debug("request rejected")
		}

		body := ErrorResponse{Status: "error", Message: message}
		if exposeErrors && code >= http.StatusInternalServerError {
			body.Detail = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error("failed to write error response", zap.NamedError("write_error", err))
		}
	}
}
