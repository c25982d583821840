package authn

import (
	"log/slog"
	"net/http"
)

// Middleware resolves request credentials once and exposes the principal to
// downstream handlers. It never rejects by itself; handlers that require
// authentication must check for an absent principal explicitly.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Handler wraps next with credential resolution.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.Resolver.Resolve(r.Context(), r)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve credentials", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
