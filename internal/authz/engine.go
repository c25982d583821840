package authz

import (
	"context"
	"errors"

	"github.com/razezix/authgate/internal/shared"
)

// PermissionStore is the read-only view over role assignments and access
// rules the engine consults. Implementations return shared.ErrNotFound for
// unknown resource codes.
type PermissionStore interface {
	ResourceByCode(ctx context.Context, code string) (Resource, error)
	RolesOf(ctx context.Context, userID int64) ([]int64, error)
	RulesFor(ctx context.Context, roleIDs []int64, resourceID int64) ([]AccessRule, error)
}

// Engine is the authorization decision function. It performs no mutation;
// a false result is a legitimate deny, never an error.
type Engine struct {
	store PermissionStore
}

// NewEngine constructs an Engine over the given store.
func NewEngine(store PermissionStore) *Engine {
	return &Engine{store: store}
}

// Decide evaluates whether userID may perform action on the resource
// identified by code. ownerID carries the target row's owner for
// single-record requests and is nil for collection-level (list/create)
// requests. An "all" grant short-circuits ownership; an "own" grant requires
// ownerID to equal the acting user's id. A list-style read with only "own"
// granted is allowed, and the caller must filter results to the user's rows.
func (e *Engine) Decide(ctx context.Context, userID int64, resourceCode string, action Action, ownerID *int64) (bool, error) {
	rules, err := e.applicableRules(ctx, userID, resourceCode)
	if err != nil || len(rules) == 0 {
		return false, err
	}

	switch action {
	case ActionCreate:
		return anyRule(rules, func(r AccessRule) bool { return r.Create }), nil
	case ActionRead:
		if anyRule(rules, func(r AccessRule) bool { return r.ReadAll }) {
			return true, nil
		}
		if ownerID == nil {
			return anyRule(rules, func(r AccessRule) bool { return r.ReadOwn }), nil
		}
		return *ownerID == userID && anyRule(rules, func(r AccessRule) bool { return r.ReadOwn }), nil
	case ActionUpdate:
		if anyRule(rules, func(r AccessRule) bool { return r.UpdateAll }) {
			return true, nil
		}
		return ownerID != nil && *ownerID == userID && anyRule(rules, func(r AccessRule) bool { return r.UpdateOwn }), nil
	case ActionDelete:
		if anyRule(rules, func(r AccessRule) bool { return r.DeleteAll }) {
			return true, nil
		}
		return ownerID != nil && *ownerID == userID && anyRule(rules, func(r AccessRule) bool { return r.DeleteOwn }), nil
	}
	return false, nil
}

// DecideAll reports whether any applicable rule grants the unconditional
// "all" scope for the action. List handlers use it to choose between
// returning every row and filtering to the acting user's own rows.
func (e *Engine) DecideAll(ctx context.Context, userID int64, resourceCode string, action Action) (bool, error) {
	rules, err := e.applicableRules(ctx, userID, resourceCode)
	if err != nil || len(rules) == 0 {
		return false, err
	}
	switch action {
	case ActionRead:
		return anyRule(rules, func(r AccessRule) bool { return r.ReadAll }), nil
	case ActionUpdate:
		return anyRule(rules, func(r AccessRule) bool { return r.UpdateAll }), nil
	case ActionDelete:
		return anyRule(rules, func(r AccessRule) bool { return r.DeleteAll }), nil
	}
	return false, nil
}

func (e *Engine) applicableRules(ctx context.Context, userID int64, resourceCode string) ([]AccessRule, error) {
	resource, err := e.store.ResourceByCode(ctx, resourceCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	roleIDs, err := e.store.RolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roleIDs) == 0 {
		return nil, nil
	}
	return e.store.RulesFor(ctx, roleIDs, resource.ID)
}

func anyRule(rules []AccessRule, pred func(AccessRule) bool) bool {
	for _, r := range rules {
		if pred(r) {
			return true
		}
	}
	return false
}
