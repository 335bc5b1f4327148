package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/windingtree/simard/pkg/errs"
	"gorm.io/gorm"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUpstream         = "UPSTREAM_PROVIDER"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// Handle processes the error and returns appropriate response
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	if kind, ok := errs.KindOf(err); ok {
		handleDomainError(c, kind, err)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "Resource not found")
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// handleDomainError maps the error taxonomy onto HTTP statuses.
func handleDomainError(c *gin.Context, kind errs.Kind, err error) {
	switch kind {
	case errs.KindValidation, errs.KindInsufficientBalance, errs.KindAlreadyUsed, errs.KindExpiration:
		fail(c, http.StatusBadRequest, kind.String(), err.Error())
	case errs.KindNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errs.KindAuthorization:
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errs.KindConflict:
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errs.KindUpstreamProvider:
		fail(c, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	fail(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}
