package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// RequestIDHeader carries the correlation id between the gateway, this
	// service and its logs.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey stores the id in Echo context.
	RequestIDKey = "request_id"

	maxRequestIDLength = 128
)

// RequestID makes sure every request has a correlation id.
//
// A well-formed incoming X-Request-ID is reused; a missing, oversized or
// non-printable one is replaced by a fresh UUID. The id is stored in Echo
// context for ContextEnhancer and echoed on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(RequestIDHeader)
			if !validRequestID(requestID) {
				requestID = uuid.New().String()
			}

			c.Set(RequestIDKey, requestID)
			c.Response().Header().Set(RequestIDHeader, requestID)

			return next(c)
		}
	}
}

// validRequestID accepts printable ASCII up to maxRequestIDLength bytes, so
// a client cannot inject control characters into log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID returns the id set by RequestID, empty when it did not run.
func GetRequestID(c echo.Context) string {
	if requestID, ok := c.Get(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
