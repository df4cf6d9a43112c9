package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes {"success": true, ...fields}.
func OK(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Fail writes {"success": false, "error": msg}.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"error":   msg,
	})
}

// StatusFor maps a service error to its HTTP status and client message.
// Not-found never says what was missing so membership is not leaked.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// Error writes the envelope for err using StatusFor.
func Error(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	Fail(c, status, msg)
}
