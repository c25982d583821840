package authn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/razezix/authgate/internal/shared"
)

// SessionStore defines the read-only session lookups the resolver depends on.
type SessionStore interface {
	// SessionForUser fetches a session together with its owning user,
	// matching both session id and user id.
	SessionForUser(ctx context.Context, id string, userID int64) (User, Session, error)
	// SessionByID fetches a session together with its owning user by id alone.
	SessionByID(ctx context.Context, id string) (User, Session, error)
}

// Resolver extracts a candidate principal from a request. It tries the
// bearer-token path first, then the cookie-session path. A credential that
// fails verification or maps to an invalid session is treated as absent,
// never as an error.
type Resolver struct {
	tokens     *TokenIssuer
	store      SessionStore
	cookieName string
	now        func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenIssuer, store SessionStore, cookieName string) *Resolver {
	return &Resolver{tokens: tokens, store: store, cookieName: cookieName, now: time.Now}
}

// Resolve returns the principal for the request, or nil when the request is
// anonymous. A non-nil error indicates a store failure, not a bad credential.
func (rs *Resolver) Resolve(ctx context.Context, r *http.Request) (*Principal, error) {
	if token := bearerToken(r); token != "" {
		principal, err := rs.resolveBearer(ctx, token)
		if err != nil {
			return nil, err
		}
		if principal != nil {
			return principal, nil
		}
	}

	if cookie, err := r.Cookie(rs.cookieName); err == nil && cookie.Value != "" {
		return rs.resolveCookie(ctx, cookie.Value)
	}

	return nil, nil
}

func (rs *Resolver) resolveBearer(ctx context.Context, token string) (*Principal, error) {
	claims, err := rs.tokens.Verify(token)
	if err != nil {
		// Malformed or tampered tokens fall through to the cookie path.
		return nil, nil
	}
	user, sess, err := rs.store.SessionForUser(ctx, claims.SID, claims.UID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !Valid(user, sess, rs.now()) {
		return nil, nil
	}
	return &Principal{User: user, Session: sess}, nil
}

func (rs *Resolver) resolveCookie(ctx context.Context, id string) (*Principal, error) {
	user, sess, err := rs.store.SessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !Valid(user, sess, rs.now()) {
		return nil, nil
	}
	return &Principal{User: user, Session: sess}, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
