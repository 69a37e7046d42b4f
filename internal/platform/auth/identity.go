package auth

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Roles carried in the "role" custom claim. Claims are matched case-insensitively so "ADMIN" and
// "admin" are equivalent.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity captures the authenticated principal extracted from a Firebase ID token. Customers
// and admins share one identity shape; admins are distinguished by role only.
type Identity struct {
	UID       string
	Email     string
	Name      string
	Roles     []string
	ExpiresAt time.Time
}

// Expired reports whether the underlying token has lapsed at now. Identities without an expiry
// never expire.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil {
		return true
	}
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// HasRole reports whether the identity includes the requested role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	return role != "" && slices.Contains(i.Roles, role)
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// PrimaryRole returns admin when the identity is an admin and user otherwise.
func (i *Identity) PrimaryRole() string {
	if i.IsAdmin() {
		return RoleAdmin
	}
	return RoleUser
}

type contextKey struct{}

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
