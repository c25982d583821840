package accounts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/shared"
	_ "github.com/razezix/authgate/testing"
)

type memoryRepo struct {
	users    map[int64]*User
	sessions map[string]authn.Session
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:    make(map[int64]*User),
		sessions: make(map[string]authn.Session),
	}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, fullName, email, passwordHash string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return nil, shared.ErrDuplicate
		}
	}
	r.nextID++
	now := time.Now()
	user := &User{
		ID:           r.nextID,
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (r *memoryRepo) UpdateUser(ctx context.Context, id int64, fullName, email *string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if email != nil {
		u.Email = *email
	}
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

func (r *memoryRepo) DeactivateUser(ctx context.Context, id int64) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = false
	return r.RevokeAllSessions(ctx, id)
}

func (r *memoryRepo) CreateSession(ctx context.Context, sess authn.Session) error {
	r.sessions[sess.ID] = sess
	return nil
}

func (r *memoryRepo) RevokeSession(ctx context.Context, id string) error {
	sess, ok := r.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return shared.ErrNotFound
	}
	now := time.Now()
	sess.RevokedAt = &now
	r.sessions[id] = sess
	return nil
}

func (r *memoryRepo) RevokeAllSessions(ctx context.Context, userID int64) error {
	now := time.Now()
	for id, sess := range r.sessions {
		if sess.UserID == userID && sess.RevokedAt == nil {
			sess.RevokedAt = &now
			r.sessions[id] = sess
		}
	}
	return nil
}

func (r *memoryRepo) SessionForUser(ctx context.Context, id string, userID int64) (authn.User, authn.Session, error) {
	sess, ok := r.sessions[id]
	if !ok || sess.UserID != userID {
		return authn.User{}, authn.Session{}, shared.ErrNotFound
	}
	return r.authnUser(sess.UserID), sess, nil
}

func (r *memoryRepo) SessionByID(ctx context.Context, id string) (authn.User, authn.Session, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return authn.User{}, authn.Session{}, shared.ErrNotFound
	}
	return r.authnUser(sess.UserID), sess, nil
}

func (r *memoryRepo) authnUser(id int64) authn.User {
	u, ok := r.users[id]
	if !ok {
		return authn.User{}
	}
	return authn.User{ID: u.ID, Email: u.Email, IsActive: u.IsActive}
}

func seedUser(t *testing.T, repo *memoryRepo, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.CreateUser(context.Background(), "Test User", email, string(hash))
	require.NoError(t, err)
	return user
}

func TestRegisterNormalizesEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)

	user, err := svc.Register(context.Background(), "  Jane Doe ", "  Jane@Example.COM ", "password123")
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.Equal(t, "Jane Doe", user.FullName)
	require.True(t, user.IsActive)
	require.NotEqual(t, "password123", user.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Jane", "jane@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "JANE@example.com", "password456")
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)
	seeded := seedUser(t, repo, "user@test.local", "correctpass")
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "USER@test.local", "correctpass")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, user.ID)

	_, err = svc.Authenticate(ctx, "user@test.local", "wrongpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@test.local", "correctpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)
	seeded := seedUser(t, repo, "user@test.local", "correctpass")
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, seeded.ID))

	_, err := svc.Authenticate(ctx, "user@test.local", "correctpass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestStartSessionCreatesFreshSession(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, 2*time.Hour)
	seeded := seedUser(t, repo, "user@test.local", "correctpass")
	ctx := context.Background()

	first, err := svc.StartSession(ctx, seeded.ID, "10.0.0.1", "agent-a")
	require.NoError(t, err)
	second, err := svc.StartSession(ctx, seeded.ID, "10.0.0.2", "agent-b")
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, repo.sessions, 2)
	require.Equal(t, "10.0.0.1", first.IP)
	require.WithinDuration(t, first.CreatedAt.Add(2*time.Hour), first.ExpiresAt, time.Second)
}

func TestDeactivateRevokesAllSessions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)
	seeded := seedUser(t, repo, "user@test.local", "correctpass")
	ctx := context.Background()

	first, err := svc.StartSession(ctx, seeded.ID, "", "")
	require.NoError(t, err)
	second, err := svc.StartSession(ctx, seeded.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, seeded.ID))

	for _, id := range []string{first.ID, second.ID} {
		sess := repo.sessions[id]
		require.NotNil(t, sess.RevokedAt)
	}
	user, err := svc.GetUser(ctx, seeded.ID)
	require.NoError(t, err)
	require.False(t, user.IsActive)
}

func TestUpdateProfileNormalizesFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, time.Hour)
	seeded := seedUser(t, repo, "user@test.local", "correctpass")
	ctx := context.Background()

	email := " NEW@Test.Local "
	user, err := svc.UpdateProfile(ctx, seeded.ID, nil, &email)
	require.NoError(t, err)
	require.Equal(t, "new@test.local", user.Email)
	require.Equal(t, seeded.FullName, user.FullName)

	name := "  Renamed  "
	user, err = svc.UpdateProfile(ctx, seeded.ID, &name, nil)
	require.NoError(t, err)
	require.Equal(t, "Renamed", user.FullName)
	require.False(t, strings.Contains(user.FullName, " R"))
}
