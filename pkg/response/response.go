// Package response holds JSON helpers matching the client wire format:
// successes are plain objects, failures are {"error": "..."}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Error string `json:"error"`
}

// OK sends a 200 response with the given payload as-is.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest sends 400 with an error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, ErrorBody{Error: err})
}

// Internal sends 500 with a generic message so storage details never leak.
func Internal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "Internal server error"})
}
