package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spcledger/internal/core/apperror"
	appctx "spcledger/internal/core/context"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// CompanyID returns the company resolved by middleware.Company.
func (h *BaseHandler) CompanyID(c *gin.Context) (id.ID, bool) {
	companyID, err := appctx.MustCompanyID(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return id.Nil(), false
	}
	return companyID, true
}

// ParamID parses a UUID path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(name, "expected a UUID"))
		return id.Nil(), false
	}
	return parsed, true
}

// OptionalID parses an optional UUID value; "" yields nil.
func (h *BaseHandler) OptionalID(c *gin.Context, field, raw string) (*id.ID, bool) {
	if raw == "" {
		return nil, true
	}
	parsed, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(field, "expected a UUID"))
		return nil, false
	}
	return &parsed, true
}

// IDs parses a list of UUID values.
func (h *BaseHandler) IDs(c *gin.Context, field string, raw []string) ([]id.ID, bool) {
	ids, err := id.ParseList(raw)
	if err != nil {
		appErr := apperror.NewInvalidInput(field, "expected a UUID")
		var pe *id.ParseError
		if errors.As(err, &pe) {
			appErr = appErr.WithDetail("value", pe.Value)
		}
		h.Error(c, appErr)
		return nil, false
	}
	return ids, true
}

// OptionalDate parses an optional YYYY-MM-DD (or RFC3339) value; "" yields nil.
func (h *BaseHandler) OptionalDate(c *gin.Context, field, raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	parsed, err := types.ParseDate(raw)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(field, "expected YYYY-MM-DD"))
		return nil, false
	}
	return &parsed, true
}

// Date parses a required date value.
func (h *BaseHandler) Date(c *gin.Context, field, raw string) (time.Time, bool) {
	if raw == "" {
		h.Error(c, apperror.NewInvalidInput(field, "is required"))
		return time.Time{}, false
	}
	parsed, ok := h.OptionalDate(c, field, raw)
	if !ok {
		return time.Time{}, false
	}
	return *parsed, true
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
