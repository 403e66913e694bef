package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
	"projectflow/pkg/util"
)

func newAuth(users *memUsers) *AuthService {
	return NewAuthService(users, "test-secret", time.Hour, zap.NewNop())
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()

	first, err := auth.Register(ctx, "Ana", "Ana@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, first.Role)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.Equal(t, model.ChannelNone, first.NotificationChannel)

	second, err := auth.Register(ctx, "Bruno", "bruno@example.com", "password2")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleMember, second.Role)

	_, err = auth.Register(ctx, "Other", "ANA@example.com", "password3")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_Validation(t *testing.T) {
	auth := newAuth(newMemUsers())
	ctx := context.Background()

	_, err := auth.Register(ctx, "", "a@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = auth.Register(ctx, "A", "not-an-email", "password1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = auth.Register(ctx, "A", "a@example.com", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLogin(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()

	u, err := auth.Register(ctx, "Ana", "ana@example.com", "password1")
	require.NoError(t, err)

	session, err := auth.Login(ctx, "ana@example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	claims, err := util.ParseJWT(session.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = auth.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, users.UpdateRoleStatus(ctx, u.ID, rbac.RoleAdmin, model.UserStatusInactive))
	_, err = auth.Login(ctx, "ana@example.com", "password1")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestRefresh(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()
	id := users.add("Ana", rbac.RoleMember)
	now := time.Now()

	fresh := &util.SessionClaims{UserID: id, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(50 * time.Minute))}}
	session, err := auth.Refresh(ctx, fresh, now)
	require.NoError(t, err)
	assert.Nil(t, session)

	expiring := &util.SessionClaims{UserID: id, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute))}}
	session, err = auth.Refresh(ctx, expiring, now)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.ExpiresAt.After(now.Add(50*time.Minute)))

	require.NoError(t, users.UpdateRoleStatus(ctx, id, rbac.RoleMember, model.UserStatusInactive))
	_, err = auth.Refresh(ctx, expiring, now)
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestUpdateUser(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()
	adminID := users.add("Admin", rbac.RoleAdmin)
	memberID := users.add("Member", rbac.RoleMember)
	admin := Actor{UserID: adminID, Role: rbac.RoleAdmin}

	u, err := auth.UpdateUser(ctx, admin, memberID, rbac.RoleManager, model.UserStatusActive)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleManager, u.Role)

	_, err = auth.UpdateUser(ctx, admin, adminID, rbac.RoleMember, model.UserStatusActive)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = auth.UpdateUser(ctx, admin, memberID, "owner", model.UserStatusActive)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = auth.UpdateUser(ctx, Actor{UserID: memberID, Role: rbac.RoleManager}, adminID, rbac.RoleMember, model.UserStatusActive)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = auth.UpdateUser(ctx, admin, 999, rbac.RoleMember, model.UserStatusActive)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePreference(t *testing.T) {
	users := newMemUsers()
	auth := newAuth(users)
	ctx := context.Background()
	id := users.add("Ana", rbac.RoleMember)

	_, err := auth.UpdatePreference(ctx, id, model.ChannelWhatsApp, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	u, err := auth.UpdatePreference(ctx, id, model.ChannelWhatsApp, "+55 11 99999-0000")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelWhatsApp, u.NotificationChannel)
	assert.Equal(t, "+55 11 99999-0000", u.Phone)

	_, err = auth.UpdatePreference(ctx, id, "sms", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
