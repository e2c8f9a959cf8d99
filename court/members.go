package court

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// NewMember describes a member to register. Registration itself belongs to
// the identity service; this is the storage-side half it calls into.
type NewMember struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
}

// NormalizeEmail is the stored form of an email address. Lookups by email
// must go through it too.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterMember creates a member with a zero balance. The id comes from the
// store's counter and the store's unique email index rejects duplicates with
// ErrEmailTaken.
func RegisterMember(ctx context.Context, store Store, nm NewMember) (Member, error) {
	email := NormalizeEmail(nm.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Member{}, fmt.Errorf("invalid email %q: %w", nm.Email, err)
	}
	role := nm.Role
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() {
		return Member{}, fmt.Errorf("invalid role %q", role)
	}
	return store.CreateMember(ctx, Member{
		FirstName:    strings.TrimSpace(nm.FirstName),
		LastName:     strings.TrimSpace(nm.LastName),
		Email:        email,
		PasswordHash: nm.PasswordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	})
}
