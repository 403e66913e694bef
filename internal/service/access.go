package service

import (
	"context"
	"errors"

	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/rbac"
)

// Actor 当前请求的用户
type Actor struct {
	UserID int64
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == rbac.RoleAdmin
}

// canAccess 角色有权限，且对非管理员要求是项目成员；
// project:manage 要求是项目经理本人
func canAccess(actor Actor, p *model.Project, permission string) bool {
	if !rbac.HasPermission(actor.Role, permission) {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	if permission == rbac.PermissionManageProject {
		return p.ManagerID == actor.UserID
	}
	return p.HasMember(actor.UserID)
}

// loadProject 读取项目并做权限检查。无读权限时返回 ErrNotFound，避免泄露项目存在性。
func loadProject(ctx context.Context, projects ProjectStore, actor Actor, projectID int64, permission string) (*model.Project, error) {
	p, err := projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, notFound(err)
	}
	if !canAccess(actor, p, rbac.PermissionReadProject) {
		return nil, ErrNotFound
	}
	if permission != rbac.PermissionReadProject && !canAccess(actor, p, permission) {
		return nil, ErrForbidden
	}
	return p, nil
}

// notFound 把仓储层 ErrNotFound 转成服务层错误
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
