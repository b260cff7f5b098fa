// Package handlers contains the Gin HTTP handlers for the citation API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clausehound/citex/pkg/errors"
)

// ErrorResponse is the standard error body returned by every endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error onto an HTTP status via its typed
// code. Codes that map to 5xx are masked so internals never leak to callers.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    string(code),
		Message: message,
	})
}

// respondInvalidParam rejects a malformed request body or parameter.
func respondInvalidParam(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(errors.CodeInvalidParam),
		Message: msg,
	})
}
