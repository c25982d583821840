package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/shared"
)

// Service wraps account and session business rules.
type Service struct {
	repo       Repository
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, sessionTTL time.Duration) *Service {
	return &Service{repo: repo, sessionTTL: sessionTTL, now: time.Now}
}

// Register creates a new active account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, strings.TrimSpace(fullName), normalizeEmail(email), string(hash))
}

// Authenticate validates email/password credentials. Unknown accounts,
// deactivated accounts and wrong passwords are indistinguishable to callers.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// StartSession creates a fresh session row. A new login always inserts a new
// session; an old one is never refreshed.
func (s *Service) StartSession(ctx context.Context, userID int64, ip, userAgent string) (authn.Session, error) {
	now := s.now().UTC()
	sess := authn.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
		IP:        ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return authn.Session{}, err
	}
	return sess, nil
}

// RevokeSession marks a single session revoked.
func (s *Service) RevokeSession(ctx context.Context, id string) error {
	return s.repo.RevokeSession(ctx, id)
}

// GetUser fetches a user profile by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile applies partial profile changes.
func (s *Service) UpdateProfile(ctx context.Context, id int64, fullName, email *string) (*User, error) {
	if email != nil {
		normalized := normalizeEmail(*email)
		email = &normalized
	}
	if fullName != nil {
		trimmed := strings.TrimSpace(*fullName)
		fullName = &trimmed
	}
	return s.repo.UpdateUser(ctx, id, fullName, email)
}

// Deactivate soft-deletes the account and revokes all of its sessions.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.DeactivateUser(ctx, id)
}

// SessionTTL exposes the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
