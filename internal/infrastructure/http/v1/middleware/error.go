package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spcledger/internal/core/apperror"
	"spcledger/internal/infrastructure/http/v1/dto"
	"spcledger/pkg/logger"
)

// ErrorHandler middleware turns errors registered on the context into a JSON body.
// Internal causes are logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(ctx, "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			} else if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error(ctx, "request error", "code", appErr.Code)
			}

			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			})
			return
		}

		logger.Error(ctx, "unhandled error", "error", err)

		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{
				"request_id": c.GetString(ctxRequestID),
			},
		})
	}
}
