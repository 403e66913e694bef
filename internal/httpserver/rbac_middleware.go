package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/handler"
	"projectflow/pkg/i18n"
	"projectflow/pkg/logger"
	"projectflow/pkg/rbac"
)

// RequirePermission 角色缺少 permission 时返回 403，拒绝记录为 Warn 便于审计
func RequirePermission(permission string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(handler.ContextRole)
		if role == "" {
			handler.AbortWithCode(c, http.StatusUnauthorized, i18n.CodeUnauthorized)
			return
		}

		if err := rbac.CheckPermission(role, permission); err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Permission denied",
				zap.Int64("user_id", c.GetInt64(handler.ContextUserID)),
				zap.String("role", role),
				zap.String("permission", permission),
				zap.String("route", c.FullPath()))
			handler.AbortWithCode(c, http.StatusForbidden, i18n.CodeForbidden)
			return
		}

		c.Next()
	}
}
