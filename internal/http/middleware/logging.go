// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides structured request logging, a panic-safe recovery
// handler, and a request ID injector. Compose them in order (RequestID,
// Logger, Recovery) so panics and errors carry the correlation id.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key for the request-scoped logger.
	loggerKey = "logger"
)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a new UUID is generated.
// The id is written back to the response header and stored in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access log per request and stores a
// request-scoped zerolog.Logger in the Gin context so downstream code can
// emit logs tied to the request. The log level follows the outcome: error
// for 5xx, warn for 4xx, info otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetString(requestIDKey)

		lg := log.Logger.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Set(loggerKey, lg)

		c.Next()

		status := c.Writer.Status()
		ev := lg.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = lg.Error()
		case status >= http.StatusBadRequest:
			ev = lg.Warn()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}

// LoggerFrom retrieves the request-scoped logger attached by Logger(),
// falling back to the global logger.
func LoggerFrom(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(zerolog.Logger); ok {
			return lg
		}
	}
	return log.Logger
}

// Recovery converts panics into JSON 500 responses, preserving the
// correlation id and logging the stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				lg := LoggerFrom(c)
				lg.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": c.GetString(requestIDKey),
					"code":       "internal_error",
					"message":    "internal server error",
				})
			}
		}()
		c.Next()
	}
}
