package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/rbac"
	"projectflow/pkg/util"
)

// MinPasswordLength 最短密码长度
const MinPasswordLength = 8

type AuthService struct {
	users     UserStore
	jwtSecret string
	ttl       time.Duration
	logger    *zap.Logger
}

func NewAuthService(users UserStore, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		ttl:       ttl,
		logger:    logger,
	}
}

// Session 登录成功后签发的会话
type Session struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Register creates a new user. 系统中的第一个用户成为管理员。
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, invalid("name is required")
	}
	if !strings.Contains(email, "@") {
		return nil, invalid("email is invalid")
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	role := rbac.RoleMember
	if count, err := s.users.Count(ctx); err == nil && count == 0 {
		role = rbac.RoleAdmin
	}

	u := &model.User{
		Name:                name,
		Email:               email,
		PasswordHash:        hash,
		Role:                role,
		Status:              model.UserStatusActive,
		NotificationChannel: model.ChannelNone,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Login checks user credentials and returns a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		s.logger.Warn("Login failed: wrong password", zap.Int64("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrUserInactive
	}

	return s.Issue(u)
}

// Issue 为用户签发新的会话令牌
func (s *AuthService) Issue(u *model.User) (*Session, error) {
	token, expiresAt, err := util.GenerateJWT(u.ID, u.Role, s.jwtSecret, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Refresh 会话剩余时间不足 1/4 时重新签发；用户被停用后不再续期
func (s *AuthService) Refresh(ctx context.Context, claims *util.SessionClaims, now time.Time) (*Session, error) {
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(now) > s.ttl/4 {
		return nil, nil
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, notFound(err)
	}
	if !u.IsActive() {
		return nil, ErrUserInactive
	}
	return s.Issue(u)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// UpdateUser 管理员修改角色和状态
func (s *AuthService) UpdateUser(ctx context.Context, actor Actor, userID int64, role, status string) (*model.User, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionAdminUsers); err != nil {
		return nil, ErrForbidden
	}
	if !rbac.IsValidRole(role) {
		return nil, invalid("unknown role %q", role)
	}
	if status != model.UserStatusActive && status != model.UserStatusInactive {
		return nil, invalid("unknown status %q", status)
	}
	if actor.UserID == userID && (role != rbac.RoleAdmin || status != model.UserStatusActive) {
		return nil, invalid("admins cannot demote or deactivate themselves")
	}

	if err := s.users.UpdateRoleStatus(ctx, userID, role, status); err != nil {
		return nil, notFound(err)
	}
	s.logger.Info("User updated by admin",
		zap.Int64("admin_id", actor.UserID),
		zap.Int64("user_id", userID),
		zap.String("role", role),
		zap.String("status", status))
	return s.Me(ctx, userID)
}

// UpdatePreference 用户修改自己的通知渠道
func (s *AuthService) UpdatePreference(ctx context.Context, userID int64, channel, phone string) (*model.User, error) {
	switch channel {
	case model.ChannelNone, model.ChannelEmail:
	case model.ChannelWhatsApp:
		if strings.TrimSpace(phone) == "" {
			return nil, invalid("phone is required for whatsapp notifications")
		}
	default:
		return nil, invalid("unknown channel %q", channel)
	}
	if err := s.users.UpdateNotificationPreference(ctx, userID, channel, strings.TrimSpace(phone)); err != nil {
		return nil, notFound(err)
	}
	return s.Me(ctx, userID)
}
