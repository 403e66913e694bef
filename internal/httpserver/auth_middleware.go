package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/handler"
	"projectflow/internal/service"
	"projectflow/pkg/i18n"
	"projectflow/pkg/util"
)

// SessionRefresher 由 service.AuthService 实现
type SessionRefresher interface {
	Refresh(ctx context.Context, claims *util.SessionClaims, now time.Time) (*service.Session, error)
}

// AuthConfig 会话校验所需配置
type AuthConfig struct {
	Secret       string
	SecureCookie bool
	Refresher    SessionRefresher
}

// AuthMiddleware 校验会话；剩余有效期不足时续期 cookie
func AuthMiddleware(cfg AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			handler.AbortWithCode(c, http.StatusUnauthorized, i18n.CodeUnauthorized)
			return
		}

		claims, err := util.ParseJWT(token, cfg.Secret)
		if err != nil {
			handler.AbortWithCode(c, http.StatusUnauthorized, i18n.CodeUnauthorized)
			return
		}

		role := claims.Role
		if cfg.Refresher != nil {
			session, err := cfg.Refresher.Refresh(c.Request.Context(), claims, time.Now())
			switch {
			case err != nil:
				logger.Warn("Session refresh refused", zap.Int64("user_id", claims.UserID), zap.Error(err))
				handler.ClearSessionCookie(c, cfg.SecureCookie)
				handler.AbortWithCode(c, http.StatusUnauthorized, i18n.CodeUnauthorized)
				return
			case session != nil:
				handler.SetSessionCookie(c, session.Token, session.ExpiresAt, cfg.SecureCookie)
				role = session.User.Role
				logger.Debug("Session refreshed", zap.Int64("user_id", claims.UserID))
			}
		}

		c.Set(handler.ContextUserID, claims.UserID)
		c.Set(handler.ContextRole, role)
		c.Next()
	}
}

// 需要登录的页面路径前缀
var protectedPagePrefixes = []string{"/dashboard", "/projects", "/settings"}

func isPageRequest(c *gin.Context) bool {
	return c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html")
}

func isProtectedPage(path string) bool {
	for _, prefix := range protectedPagePrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// RouteGuard 浏览器页面请求的跳转：未登录访问受保护页面跳到 /login?next=，
// 已登录访问 /login 跳到 /dashboard。API 请求不受影响。
func RouteGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isPageRequest(c) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		_, err := util.ParseJWT(util.ExtractToken(c.Request), secret)
		authenticated := err == nil

		switch {
		case path == "/login" && authenticated:
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
		case isProtectedPage(path) && !authenticated:
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
		default:
			c.Next()
		}
	}
}
