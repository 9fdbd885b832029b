package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// UserHeader carries the acting user when requests arrive through a trusted proxy.
const UserHeader = "X-Governance-User"

const contextUser contextKey = 1

type (
	contextKey int
	Middleware func(next http.Handler) http.Handler
)

// StaticUser returns a middleware that sets the acting user to the given value
func StaticUser(user string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// TrustedHeader returns a middleware that reads the acting user from the
// X-Governance-User header. Requests without the header pass through
// unauthenticated, and handlers that need a user reject them.
func TrustedHeader() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get(UserHeader))
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, contextUser, user)
}

// GetUser returns the acting user that is stored in the context
func GetUser(ctx context.Context) (string, error) {
	user, ok := ctx.Value(contextUser).(string)
	if !ok || user == "" {
		return "", fmt.Errorf("no user in context")
	}
	return user, nil
}
