package api

import "github.com/gin-gonic/gin"

// Error codes returned in the response envelope.
const (
	CodeValidationError = "validation_error"
	CodeNotFound        = "not_found"
	CodeInternalError   = "internal_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, envelope{Success: false, Error: &apiError{Code: code, Message: message}})
}
