package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/repository"
	"github.com/sibec-dev/becas-api/pkg/middleware/requestid"
)

// Audit records an audit row for each successful decision request. Failed
// requests leave no trail here; the request log covers those. An audit write
// failure never fails the request, but it has to surface in the log so a gap
// in the trail is noticed.
func Audit(repo *repository.AuditRepository, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			return
		}

		entry := &models.AuditLog{
			Action:    action,
			Resource:  resource,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			entry.UserID = &user.UserID
		}
		if id := c.Param("id"); id != "" {
			entry.ResourceID = &id
		}
		entry.NewValues, _ = json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": requestid.Value(c),
		})

		if err := repo.Create(c.Request.Context(), entry); err != nil {
			logger.Error("audit write failed",
				zap.String("action", action),
				zap.String("resource", resource),
				zap.String("request_id", requestid.Value(c)),
				zap.Error(err))
		}
	}
}
