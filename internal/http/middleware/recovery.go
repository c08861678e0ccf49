// README: Recovery middleware; turns handler panics into 500 responses.
package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"brigade/internal/logger"
)

func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "http_panic", "handler panicked", fmt.Errorf("%v", r), map[string]any{
					"path": c.Request.URL.Path,
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
