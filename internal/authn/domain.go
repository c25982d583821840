package authn

import "time"

// User is the minimal account view authentication cares about.
type User struct {
	ID       int64
	Email    string
	IsActive bool
}

// Session represents one authenticated login.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IP        string
	UserAgent string
}

// Alive reports whether the session itself is unrevoked and unexpired.
// Full validity additionally requires the owning user to be active.
func (s Session) Alive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Valid applies the full session validity invariant.
func Valid(user User, sess Session, now time.Time) bool {
	return sess.Alive(now) && user.IsActive
}

// Principal is the authenticated (user, session) pair resolved for a request.
type Principal struct {
	User    User
	Session Session
}
