package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/razezix/authgate/internal/platform/db"
)

// Seed provisions the default roles, resources, access rules and demo users.
// It is a no-op when any role already exists.
func Seed(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var seeded bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles)`).Scan(&seeded); err != nil {
		return fmt.Errorf("authz: seed check: %w", err)
	}
	if seeded {
		return nil
	}

	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		roleIDs := make(map[string]int64, 3)
		for _, role := range []struct{ name, description string }{
			{"admin", "Administrator"},
			{"manager", "Manager"},
			{"user", "Regular user"},
		} {
			var id int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING id`,
				role.name, role.description).Scan(&id); err != nil {
				return err
			}
			roleIDs[role.name] = id
		}

		resourceIDs := make(map[string]int64, 3)
		for _, res := range []struct{ code, description string }{
			{"products", "Products (mock)"},
			{"orders", "Orders (mock)"},
			{"access_rules", "Access rules"},
		} {
			var id int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO resources (code, description) VALUES ($1, $2) RETURNING id`,
				res.code, res.description).Scan(&id); err != nil {
				return err
			}
			resourceIDs[res.code] = id
		}

		insertRule := func(roleID, resourceID int64, rule AccessRule) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO access_rules (role_id, resource_id, read_own, read_all, can_create, update_own, update_all, delete_own, delete_all)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				roleID, resourceID, rule.ReadOwn, rule.ReadAll, rule.Create,
				rule.UpdateOwn, rule.UpdateAll, rule.DeleteOwn, rule.DeleteAll)
			return err
		}

		// admin: everything, on every resource.
		for _, resourceID := range resourceIDs {
			if err := insertRule(roleIDs["admin"], resourceID, AccessRule{
				ReadOwn: true, ReadAll: true, Create: true,
				UpdateOwn: true, UpdateAll: true, DeleteOwn: true, DeleteAll: true,
			}); err != nil {
				return err
			}
		}

		// manager: read/update everything plus create, no delete.
		for _, code := range []string{"products", "orders"} {
			if err := insertRule(roleIDs["manager"], resourceIDs[code], AccessRule{
				ReadOwn: true, ReadAll: true, Create: true,
				UpdateOwn: true, UpdateAll: true,
			}); err != nil {
				return err
			}
		}

		// user: create plus read/update/delete scoped to own records.
		for _, code := range []string{"products", "orders"} {
			if err := insertRule(roleIDs["user"], resourceIDs[code], AccessRule{
				ReadOwn: true, Create: true, UpdateOwn: true, DeleteOwn: true,
			}); err != nil {
				return err
			}
		}

		for _, account := range []struct {
			email, fullName, password, role string
		}{
			{"admin@example.com", "Admin", "admin123", "admin"},
			{"manager@example.com", "Manager", "manager123", "manager"},
			{"user@example.com", "User", "user123", "user"},
		} {
			hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			var userID int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO users (full_name, email, password_hash, is_active) VALUES ($1, $2, $3, TRUE) RETURNING id`,
				account.fullName, strings.ToLower(account.email), string(hash)).Scan(&userID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
				userID, roleIDs[account.role]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("authz: seed: %w", err)
	}
	if logger != nil {
		logger.Info("seeded default roles, resources and demo users")
	}
	return nil
}
