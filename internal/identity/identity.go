// Package identity defines the read-only contract against the user/role
// store. Authentication and user management live in a separate system; the
// engine only resolves auditors and role-based recipient lists.
package identity

import (
	"context"

	"auditflow/pkg/domain"
)

// User is the minimal projection the engine needs.
type User struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Roles []domain.Role `json:"roles"`
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role domain.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Store is the identity collaborator. May return sentinel.ErrNotFound.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]*User, error)
}
