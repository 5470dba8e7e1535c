package core

import (
	"context"
	"fmt"
)

// ModuleApprovals is the RBAC module which guards all approval operations.
const ModuleApprovals = "approvals"

// Higher permissions include lower permissions. Approve ranks above create, so approvers may also start workflows.
type Permission int

const (
	PermNone    Permission = 1
	PermRead    Permission = 100
	PermCreate  Permission = 200 // create workflows, folders and files, cancel own workflows
	PermApprove Permission = 300 // decide own approval steps
	PermAdmin   Permission = 500 // manage folder rules, purge workflows
)

func (p Permission) String() string {
	switch p {
	case PermNone:
		return "none"
	case PermRead:
		return "read"
	case PermCreate:
		return "create"
	case PermApprove:
		return "approve"
	case PermAdmin:
		return "admin"
	}
	return "unknown"
}

func (p Permission) Valid() bool {
	switch p {
	case PermNone, PermRead, PermCreate, PermApprove, PermAdmin:
		return true
	default:
		return false
	}
}

func ParsePermission(s string) (Permission, error) {
	for _, p := range []Permission{PermNone, PermRead, PermCreate, PermApprove, PermAdmin} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown permission %q", ErrInvalid, s)
}

// An AccessDB stores the permission of a user per module.
type AccessDB interface {
	GetPermission(ctx context.Context, userID, module string) (Permission, error) // PermNone if there is no grant
	SetPermission(ctx context.Context, userID, module string, perm Permission) error
}

// HasPermission returns whether the user may perform an action on a module.
func (c *CoreDB) HasPermission(ctx context.Context, userID, module string, action Permission) (bool, error) {
	if userID == "" {
		return false, nil
	}
	perm, err := c.AccessDB.GetPermission(ctx, userID, module)
	if err != nil {
		return false, err
	}
	if !perm.Valid() {
		return false, fmt.Errorf("invalid permission %d", perm)
	}
	return perm >= action, nil
}

// RequirePermission returns an error wrapping ErrUnauthorized if the user must not perform the action.
func (c *CoreDB) RequirePermission(ctx context.Context, userID, module string, action Permission) error {
	ok, err := c.HasPermission(ctx, userID, module, action)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s permission on %s required", ErrUnauthorized, action, module)
	}
	return nil
}

// Grant shadows AccessDB.SetPermission.
func (c *CoreDB) Grant(ctx context.Context, userID, module string, perm Permission) error {
	if !perm.Valid() {
		return fmt.Errorf("%w: invalid permission %d", ErrInvalid, perm)
	}
	if _, err := c.UserDB.GetUser(ctx, userID); err != nil {
		return err
	}
	return c.AccessDB.SetPermission(ctx, userID, module, perm)
}
