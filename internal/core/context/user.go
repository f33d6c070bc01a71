// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// Well-known roles.
const (
	RoleAdmin = "admin"
	RoleClerk = "clerk"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID  string
	Email   string
	Roles   []string
	IsAdmin bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role. Admins have every role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// IsAdmin reports whether the caller may approve stock entries.
func IsAdmin(ctx context.Context) bool {
	return HasRole(ctx, RoleAdmin)
}
