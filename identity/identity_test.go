package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/court/store"
	"github.com/warp/court-engine/identity"
)

func setup(t *testing.T) (*identity.Authenticator, *identity.Tokens, *store.Memory) {
	mem := store.NewMemory()
	tokens := identity.NewTokens("test-secret", time.Hour)
	return identity.NewAuthenticator(tokens, mem), tokens, mem
}

func register(t *testing.T, s *store.Memory, email string, role court.Role, password string) court.Member {
	hash := ""
	if password != "" {
		var err error
		hash, err = identity.HashPassword(password)
		require.NoError(t, err)
	}
	m, err := court.RegisterMember(context.Background(), s, court.NewMember{
		FirstName: "Jane", LastName: "Doe", Email: email, Role: role, PasswordHash: hash,
	})
	require.NoError(t, err)
	return m
}

func TestAuthenticate_RoleComesFromStore(t *testing.T) {
	auth, tokens, mem := setup(t)
	ctx := context.Background()
	admin := register(t, mem, "admin@club.test", court.RoleAdmin, "")

	raw, err := tokens.Issue(admin)
	require.NoError(t, err)

	p, err := auth.Authenticate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.MemberID)
	assert.True(t, p.IsAdmin())
	assert.NoError(t, identity.RequireAdmin(p))
}

func TestAuthenticate_Rejections(t *testing.T) {
	auth, tokens, mem := setup(t)
	ctx := context.Background()
	m := register(t, mem, "jane@club.test", court.RoleMember, "")

	tests := []struct {
		name string
		raw  func() string
	}{
		{name: "empty", raw: func() string { return "" }},
		{name: "garbage", raw: func() string { return "not.a.token" }},
		{name: "wrong secret", raw: func() string {
			raw, _ := identity.NewTokens("other-secret", time.Hour).Issue(m)
			return raw
		}},
		{name: "expired", raw: func() string {
			raw, _ := identity.NewTokens("test-secret", -time.Minute).Issue(m)
			return raw
		}},
		{name: "unknown member", raw: func() string {
			raw, _ := tokens.Issue(court.Member{ID: 999})
			return raw
		}},
		{name: "none algorithm", raw: func() string {
			tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: m.ID.String()})
			raw, _ := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
			return raw
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.raw())
			assert.ErrorIs(t, err, court.ErrUnauthenticated)
		})
	}
}

func TestRequireAdmin_Member(t *testing.T) {
	err := identity.RequireAdmin(identity.Principal{MemberID: 3, Role: court.RoleMember})
	assert.ErrorIs(t, err, court.ErrUnauthorized)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := identity.FromContext(context.Background())
	assert.False(t, ok)

	ctx := identity.WithPrincipal(context.Background(), identity.Principal{MemberID: 7, Role: court.RoleAdmin})
	p, ok := identity.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, court.MemberID(7), p.MemberID)
}

func TestLogin(t *testing.T) {
	auth, _, mem := setup(t)
	ctx := context.Background()
	m := register(t, mem, "jane@club.test", court.RoleMember, "s3cret!")

	raw, got, err := auth.Login(ctx, "jane@club.test", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	p, err := auth.Authenticate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, m.ID, p.MemberID)

	_, _, err = auth.Login(ctx, "jane@club.test", "wrong")
	assert.ErrorIs(t, err, court.ErrUnauthenticated)

	_, _, err = auth.Login(ctx, "nobody@club.test", "s3cret!")
	assert.ErrorIs(t, err, court.ErrUnauthenticated)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	// GIVEN: A member registered with a mixed-case address
	auth, _, mem := setup(t)
	ctx := context.Background()
	m := register(t, mem, "Jane.Doe@Club.test", court.RoleMember, "pw")
	assert.Equal(t, "jane.doe@club.test", m.Email)

	// WHEN/THEN: Every spelling of that address logs in
	for _, email := range []string{"Jane.Doe@Club.test", "jane.doe@club.test", "  JANE.DOE@CLUB.TEST "} {
		_, got, err := auth.Login(ctx, email, "pw")
		require.NoError(t, err, email)
		assert.Equal(t, m.ID, got.ID)
	}
}
