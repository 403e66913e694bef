package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"projectflow/internal/ai"
	"projectflow/internal/service"
	"projectflow/pkg/i18n"
	"projectflow/pkg/logger"
	"projectflow/pkg/outbox"
	"projectflow/pkg/util"
)

// gin context 中的 key，由 AuthMiddleware 写入
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// 按顺序匹配，第一个 errors.Is 成立的生效
var errorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, i18n.CodeNotFound},
	{outbox.ErrEventNotFound, http.StatusNotFound, i18n.CodeNotFound},
	{service.ErrForbidden, http.StatusForbidden, i18n.CodeForbidden},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, i18n.CodeInvalidCredentials},
	{service.ErrUserInactive, http.StatusForbidden, i18n.CodeUserInactive},
	{service.ErrEmailTaken, http.StatusConflict, i18n.CodeEmailTaken},
	{service.ErrWeakPassword, http.StatusBadRequest, i18n.CodeWeakPassword},
	{service.ErrInvalidStatus, http.StatusBadRequest, i18n.CodeInvalidStatus},
	{service.ErrInvalidParent, http.StatusBadRequest, i18n.CodeInvalidParent},
	{service.ErrInvalidDependency, http.StatusBadRequest, i18n.CodeInvalidDependency},
	{service.ErrDependencyCycle, http.StatusBadRequest, i18n.CodeDependencyCycle},
	{service.ErrInvalidConfig, http.StatusBadRequest, i18n.CodeInvalidConfig},
	{service.ErrInvalidCSV, http.StatusBadRequest, i18n.CodeInvalidCSV},
	{service.ErrInvalidInput, http.StatusBadRequest, i18n.CodeInvalidRequest},
	{ai.ErrUnavailable, http.StatusBadGateway, i18n.CodeAIUnavailable},
	{ai.ErrBadResponse, http.StatusBadGateway, i18n.CodeAIUnavailable},
}

// Lang 请求的语言
func Lang(c *gin.Context) language.Tag {
	return i18n.Match(c.GetHeader("Accept-Language"))
}

// AbortWithCode 返回本地化的错误体并中止请求
func AbortWithCode(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": i18n.Message(Lang(c), code), "code": code})
}

// respondError 把服务层错误转换为 HTTP 响应。4xx 附带 detail 便于表单提示。
func respondError(c *gin.Context, log *zap.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		body := gin.H{"error": i18n.Message(Lang(c), m.code), "code": m.code}
		if m.status == http.StatusBadRequest {
			body["detail"] = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			logger.WithTrace(c.Request.Context(), log).Warn("Upstream failure",
				zap.String("path", c.FullPath()),
				zap.Error(err))
		}
		c.AbortWithStatusJSON(m.status, body)
		return
	}

	logger.WithTrace(c.Request.Context(), log).Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	AbortWithCode(c, http.StatusInternalServerError, i18n.CodeInternal)
}

// badRequest 请求体或参数绑定失败
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":  i18n.Message(Lang(c), i18n.CodeInvalidRequest),
		"code":   i18n.CodeInvalidRequest,
		"detail": err.Error(),
	})
}

// actor 当前用户，AuthMiddleware 保证存在
func actor(c *gin.Context) service.Actor {
	return service.Actor{UserID: c.GetInt64(ContextUserID), Role: c.GetString(ContextRole)}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		AbortWithCode(c, http.StatusBadRequest, i18n.CodeInvalidRequest)
		return 0, false
	}
	return id, true
}

// SetSessionCookie 写入会话 cookie（HttpOnly，SameSite=Lax）
func SetSessionCookie(c *gin.Context, token string, expiresAt time.Time, secure bool) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(util.SessionCookieName, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie 删除会话 cookie
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(util.SessionCookieName, "", -1, "/", "", secure, true)
}
