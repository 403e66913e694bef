package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is inactive")
	ErrEmailTaken         = errors.New("email already exists")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidStatus      = errors.New("status is not configured for this project")
	ErrInvalidParent      = errors.New("invalid parent task")
	ErrInvalidDependency  = errors.New("invalid dependency")
	ErrDependencyCycle    = errors.New("dependency cycle")
	ErrInvalidConfig      = errors.New("invalid project config")
	ErrInvalidCSV         = errors.New("invalid csv")
)

// invalid 带字段说明的输入错误，errors.Is(err, ErrInvalidInput) 成立
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
