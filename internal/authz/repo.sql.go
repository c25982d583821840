package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/razezix/authgate/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles, resources and
// access rules, and implements PermissionStore for the engine.
type Repository struct {
	pool      *pgxpool.Pool
	resources singleflight.Group
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResourceByCode resolves a resource by its unique code. Concurrent lookups
// for the same code are collapsed into a single query; the result is not
// retained between requests.
func (r *Repository) ResourceByCode(ctx context.Context, code string) (Resource, error) {
	v, err, _ := r.resources.Do(code, func() (any, error) {
		var res Resource
		err := r.pool.QueryRow(ctx,
			`SELECT id, code, description FROM resources WHERE code = $1`, code,
		).Scan(&res.ID, &res.Code, &res.Description)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Resource{}, shared.ErrNotFound
			}
			return Resource{}, err
		}
		return res, nil
	})
	if err != nil {
		return Resource{}, err
	}
	return v.(Resource), nil
}

// RolesOf returns the ids of every role held by the user.
func (r *Repository) RolesOf(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RulesFor returns every access rule any of the roles holds over the resource.
func (r *Repository) RulesFor(ctx context.Context, roleIDs []int64, resourceID int64) ([]AccessRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, resource_id, read_own, read_all, can_create, update_own, update_all, delete_own, delete_all
		 FROM access_rules WHERE role_id = ANY($1) AND resource_id = $2`, roleIDs, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []AccessRule
	for rows.Next() {
		var rule AccessRule
		if err := rows.Scan(&rule.ID, &rule.RoleID, &rule.ResourceID,
			&rule.ReadOwn, &rule.ReadAll, &rule.Create,
			&rule.UpdateOwn, &rule.UpdateAll, &rule.DeleteOwn, &rule.DeleteAll); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// HasRoleNamed reports whether the user holds a role with the given name.
func (r *Repository) HasRoleNamed(ctx context.Context, userID int64, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM user_roles ur JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = $1 AND ro.name = $2
		 )`, userID, name).Scan(&exists)
	return exists, err
}

// ListRoles returns all roles ordered by id.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id, name, description`,
		name, description).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return Role{}, mapPGError(err)
	}
	return role, nil
}

// UpdateRole updates an existing role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3 WHERE id = $1 RETURNING id, name, description`,
		id, name, description).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, mapPGError(err)
	}
	return role, nil
}

// DeleteRole removes a role by id.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListResources returns all resources ordered by id.
func (r *Repository) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, description FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var resources []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Code, &res.Description); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// CreateResource inserts a new resource.
func (r *Repository) CreateResource(ctx context.Context, code, description string) (Resource, error) {
	var res Resource
	err := r.pool.QueryRow(ctx,
		`INSERT INTO resources (code, description) VALUES ($1, $2) RETURNING id, code, description`,
		code, description).Scan(&res.ID, &res.Code, &res.Description)
	if err != nil {
		return Resource{}, mapPGError(err)
	}
	return res, nil
}

// UpdateResource updates an existing resource.
func (r *Repository) UpdateResource(ctx context.Context, id int64, code, description string) (Resource, error) {
	var res Resource
	err := r.pool.QueryRow(ctx,
		`UPDATE resources SET code = $2, description = $3 WHERE id = $1 RETURNING id, code, description`,
		id, code, description).Scan(&res.ID, &res.Code, &res.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, shared.ErrNotFound
		}
		return Resource{}, mapPGError(err)
	}
	return res, nil
}

// DeleteResource removes a resource by id.
func (r *Repository) DeleteResource(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListRules returns all access rules ordered by id.
func (r *Repository) ListRules(ctx context.Context) ([]AccessRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, role_id, resource_id, read_own, read_all, can_create, update_own, update_all, delete_own, delete_all
		 FROM access_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []AccessRule
	for rows.Next() {
		var rule AccessRule
		if err := rows.Scan(&rule.ID, &rule.RoleID, &rule.ResourceID,
			&rule.ReadOwn, &rule.ReadAll, &rule.Create,
			&rule.UpdateOwn, &rule.UpdateAll, &rule.DeleteOwn, &rule.DeleteAll); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// CreateRule inserts a new access rule.
func (r *Repository) CreateRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO access_rules (role_id, resource_id, read_own, read_all, can_create, update_own, update_all, delete_own, delete_all)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		rule.RoleID, rule.ResourceID, rule.ReadOwn, rule.ReadAll, rule.Create,
		rule.UpdateOwn, rule.UpdateAll, rule.DeleteOwn, rule.DeleteAll).Scan(&rule.ID)
	if err != nil {
		return AccessRule{}, mapPGError(err)
	}
	return rule, nil
}

// UpdateRule replaces the flags of an existing access rule.
func (r *Repository) UpdateRule(ctx context.Context, rule AccessRule) (AccessRule, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_rules SET role_id = $2, resource_id = $3, read_own = $4, read_all = $5, can_create = $6,
		 update_own = $7, update_all = $8, delete_own = $9, delete_all = $10 WHERE id = $1`,
		rule.ID, rule.RoleID, rule.ResourceID, rule.ReadOwn, rule.ReadAll, rule.Create,
		rule.UpdateOwn, rule.UpdateAll, rule.DeleteOwn, rule.DeleteAll)
	if err != nil {
		return AccessRule{}, mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return AccessRule{}, shared.ErrNotFound
	}
	return rule, nil
}

// DeleteRule removes an access rule by id.
func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignRole links a role to a user, ignoring an already existing link.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return err
}

// RemoveRole removes a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

var (
	_ PermissionStore = (*Repository)(nil)
	_ AdminStore      = (*Repository)(nil)
)
