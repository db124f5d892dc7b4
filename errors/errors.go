package errors

import (
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// Error is an error with an attached HTTP status code. Handlers pass it
// straight to the response package, which uses the status for the reply.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *Error) Error() string {
	return e.Message
}

// New returns an Error carrying the given message and HTTP status code.
func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

var (
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrNotFound            = New("resource not found", http.StatusNotFound)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)
	ErrInactiveUser        = New("user is inactive", http.StatusUnauthorized)
)

// ValidationError marks malformed input: out-of-range coordinates, bad enum
// values, text length violations. Maps to 400 with field-level detail.
func NewValidationError(field, message string) *Error {
	return New(fmt.Sprintf("%s: %s", field, message), http.StatusBadRequest)
}

// NewConflictError marks a mutation that already happened, e.g. a duplicate
// verification vote. Maps to 400 with a specific message.
func NewConflictError(message string) *Error {
	return New(message, http.StatusBadRequest)
}

func NewAuthorizationError(message string) *Error {
	return New(message, http.StatusForbidden)
}

func NewNotFoundError(message string) *Error {
	return New(message, http.StatusNotFound)
}

// ErrorHandler is handed to the gin-rate-limit middleware.
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"message": "too many requests, try again in " + time.Until(info.ResetTime).String(),
	})
}
