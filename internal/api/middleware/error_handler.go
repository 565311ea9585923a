package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// ErrorHandler drains c.Errors after the handler chain runs and renders the
// last one as a JSON response. Route handlers report failures with
// c.Error(err) and return; this is the only place that writes an error
// body, so every admin command failure has one consistent shape.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		requestID := GetRequestID(c.Request.Context())
		actor := GetActor(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			logger.Warn("admin request failed",
				zap.String("request_id", requestID),
				zap.String("actor", actor),
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":       appErr.Code,
				"message":    appErr.Message,
				"request_id": requestID,
				"actor":      actor,
			})
			return
		}

		logger.Error("admin request failed with an unclassified error",
			zap.String("request_id", requestID),
			zap.String("actor", actor),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":       "INTERNAL_ERROR",
			"message":    "an internal error occurred",
			"request_id": requestID,
			"actor":      actor,
		})
	}
}
