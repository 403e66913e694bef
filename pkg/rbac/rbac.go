package rbac

// 权限常量
const (
	PermissionCreateProject = "project:create"
	PermissionManageProject = "project:manage"
	PermissionReadProject   = "project:read"
	PermissionWriteTask     = "task:write"
	PermissionDeleteTask    = "task:delete"
	PermissionUseAI         = "ai:use"
	PermissionAdminUsers    = "user:admin"
	PermissionAdminOutbox   = "outbox:admin"
)

// 角色常量
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleMember: {
		PermissionReadProject,
		PermissionWriteTask,
		PermissionUseAI,
	},
	RoleManager: {
		PermissionReadProject,
		PermissionCreateProject,
		PermissionManageProject,
		PermissionWriteTask,
		PermissionDeleteTask,
		PermissionUseAI,
	},
	RoleAdmin: {
		PermissionReadProject,
		PermissionCreateProject,
		PermissionManageProject,
		PermissionWriteTask,
		PermissionDeleteTask,
		PermissionUseAI,
		PermissionAdminUsers,
		PermissionAdminOutbox,
	},
}

// IsValidRole 角色是否合法
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
