package middleware

import (
	"net/http"

	"liverelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error attached to the context as
// {ok:false, error, code}. Handlers that already wrote a response are left alone.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			logger.Errorw("unhandled error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			appErr = errors.NewInternalError("internal server error")
		} else if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"path", c.Request.URL.Path,
				"cause", appErr.Cause,
			)
		} else {
			logger.Debugw("request rejected",
				"code", appErr.Code,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
			)
		}

		body := gin.H{
			"ok":    false,
			"error": appErr.Message,
			"code":  string(appErr.Code),
		}
		if len(appErr.Context) > 0 {
			body["details"] = appErr.Context
		}
		c.JSON(appErr.HTTPStatus, body)
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{
						"ok":    false,
						"error": "internal server error",
						"code":  string(errors.ErrCodeInternal),
					})
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
