package middleware

import (
	"liverelay/internal/core/ports"
	"liverelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

// PushAuthMiddleware rejects requests whose Authorization header does not
// satisfy authorizer. When no credential is configured every request passes.
func PushAuthMiddleware(authorizer ports.PushAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authorizer.Authorize(c.GetHeader("Authorization")) {
			_ = c.Error(errors.NewUnauthorizedError("unauthorized"))
			c.Abort()
			return
		}
		c.Next()
	}
}
