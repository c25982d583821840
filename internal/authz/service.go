package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/razezix/authgate/internal/shared"
)

// AdminStore defines the persistence operations the administrative service
// depends on.
type AdminStore interface {
	HasRoleNamed(ctx context.Context, userID int64, name string) (bool, error)

	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	ListResources(ctx context.Context) ([]Resource, error)
	CreateResource(ctx context.Context, code, description string) (Resource, error)
	UpdateResource(ctx context.Context, id int64, code, description string) (Resource, error)
	DeleteResource(ctx context.Context, id int64) error

	ListRules(ctx context.Context) ([]AccessRule, error)
	CreateRule(ctx context.Context, rule AccessRule) (AccessRule, error)
	UpdateRule(ctx context.Context, rule AccessRule) (AccessRule, error)
	DeleteRule(ctx context.Context, id int64) error

	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// Service orchestrates administrative role, resource and rule management.
type Service struct {
	repo AdminStore
}

// NewService constructs a Service.
func NewService(repo AdminStore) *Service {
	return &Service{repo: repo}
}

// IsAdmin reports whether the user holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.repo.HasRoleNamed(ctx, userID, AdminRoleName)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidInput)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrInvalidInput)
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// ListResources returns all resources.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.repo.ListResources(ctx)
}

// CreateResource inserts a new resource.
func (s *Service) CreateResource(ctx context.Context, code, description string) (Resource, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resource{}, fmt.Errorf("%w: resource code required", shared.ErrInvalidInput)
	}
	return s.repo.CreateResource(ctx, code, strings.TrimSpace(description))
}

// UpdateResource updates an existing resource.
func (s *Service) UpdateResource(ctx context.Context, id int64, code, description string) (Resource, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Resource{}, fmt.Errorf("%w: resource code required", shared.ErrInvalidInput)
	}
	return s.repo.UpdateResource(ctx, id, code, strings.TrimSpace(description))
}

// DeleteResource removes a resource.
func (s *Service) DeleteResource(ctx context.Context, id int64) error {
	return s.repo.DeleteResource(ctx, id)
}

// ListRules returns all access rules.
func (s *Service) ListRules(ctx context.Context) ([]AccessRule, error) {
	return s.repo.ListRules(ctx)
}

// CreateRule inserts a new access rule.
func (s *Service) CreateRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	return s.repo.CreateRule(ctx, rule)
}

// UpdateRule replaces an existing access rule.
func (s *Service) UpdateRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	return s.repo.UpdateRule(ctx, rule)
}

// DeleteRule removes an access rule.
func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	return s.repo.DeleteRule(ctx, id)
}

// AssignRole assigns a role to the given user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RemoveRole removes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID)
}
