package authz

// Action enumerates the operations the engine can evaluate.
type Action string

// Supported actions. Anything else denies immediately.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Role represents a named permission bundle.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Resource names a protectable entity class, e.g. "products".
type Resource struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// AccessRule is the permission bundle a role holds over a resource. The seven
// flags are independent; "all" scope supersedes "own" scope for the same verb.
type AccessRule struct {
	ID         int64 `json:"id"`
	RoleID     int64 `json:"role_id"`
	ResourceID int64 `json:"resource_id"`
	ReadOwn    bool  `json:"read_own"`
	ReadAll    bool  `json:"read_all"`
	Create     bool  `json:"create"`
	UpdateOwn  bool  `json:"update_own"`
	UpdateAll  bool  `json:"update_all"`
	DeleteOwn  bool  `json:"delete_own"`
	DeleteAll  bool  `json:"delete_all"`
}

// UserRole links a user to a role. A user may hold several roles; effective
// permissions are the union across all of them.
type UserRole struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// AdminRoleName gates the administrative CRUD endpoints.
const AdminRoleName = "admin"
