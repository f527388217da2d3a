package app

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const errKey = "deskmail_error"

// Error is the structured error body for the internal read surface. The
// webhook endpoints answer providers with their own minimal shapes and do
// not use it.
type Error struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	RequestID   string            `json:"request_id,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Envelope wraps successful data or an error.
type Envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

// AbortError records an error and aborts the handler. The response is
// rendered by the Errors middleware so every failure carries the same
// shape and a request id.
func AbortError(c *gin.Context, status int, code, message string, fields map[string]string) {
	c.Set(errKey, &Error{Code: code, Message: message, FieldErrors: fields})
	c.AbortWithStatus(status)
}

// Errors emits a JSON error envelope and structured log entry when an error
// was recorded via AbortError.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		v, ok := c.Get(errKey)
		if !ok {
			return
		}
		err, ok := v.(*Error)
		if !ok {
			return
		}
		err.RequestID = c.GetString("request_id")
		status := c.Writer.Status()
		logger := log.Ctx(c.Request.Context()).Error().Str("code", err.Code)
		for k, v := range err.FieldErrors {
			logger = logger.Str("field_"+k, v)
		}
		logger.Msg(err.Message)
		c.JSON(status, Envelope{Error: err})
	}
}
