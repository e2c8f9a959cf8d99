/*
Package identity turns a bearer token into an authenticated principal.

PURPOSE:
  Authentication proper (sign-up, sessions) is outside the engine. This
  package is the adapter the HTTP layer calls: it verifies an HS256 token,
  resolves the member it names, and answers "may this principal do X".

TRUST:
  Only the subject (member id) is read from the token. The role always
  comes from the member table, so demoting an admin takes effect on the
  next request without revoking tokens.

SEE ALSO:
  - api/auth.go: middleware using Authenticator
  - cmd/server/admin.go: `token issue` and `member create`
*/
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/court-engine/court"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// PRINCIPAL
// =============================================================================

// Principal is the authenticated caller of an operation.
type Principal struct {
	MemberID court.MemberID
	Role     court.Role
}

func (p Principal) IsAdmin() bool { return p.Role == court.RoleAdmin }

// RequireAdmin returns court.ErrUnauthorized unless p is an admin.
func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return fmt.Errorf("member %s: %w", p.MemberID, court.ErrUnauthorized)
	}
	return nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// =============================================================================
// TOKENS
// =============================================================================

// Claims is the token payload. Subject holds the member id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

const issuer = "court-engine"

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for a member.
func (t *Tokens) Issue(m court.Member) (string, error) {
	now := t.now()
	claims := Claims{
		Email: m.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.ID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature and expiry and returns the member id.
func (t *Tokens) Verify(raw string) (court.MemberID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", court.ErrUnauthenticated, err)
	}
	n, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", court.ErrUnauthenticated, claims.Subject)
	}
	return court.MemberID(n), nil
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Members is the lookup the authenticator needs from the store.
type Members interface {
	GetMember(ctx context.Context, id court.MemberID) (court.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (court.Member, error)
}

type Authenticator struct {
	tokens  *Tokens
	members Members
}

func NewAuthenticator(tokens *Tokens, members Members) *Authenticator {
	return &Authenticator{tokens: tokens, members: members}
}

// Authenticate verifies a raw token and loads the caller's current role.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, court.ErrUnauthenticated
	}
	id, err := a.tokens.Verify(raw)
	if err != nil {
		return Principal{}, err
	}
	m, err := a.members.GetMember(ctx, id)
	if errors.Is(err, court.ErrMemberNotFound) {
		return Principal{}, fmt.Errorf("%w: member %s no longer exists", court.ErrUnauthenticated, id)
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{MemberID: m.ID, Role: m.Role}, nil
}

// Login checks an email and password and issues a token.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, court.Member, error) {
	m, err := a.members.GetMemberByEmail(ctx, court.NormalizeEmail(email))
	if errors.Is(err, court.ErrMemberNotFound) {
		return "", court.Member{}, court.ErrUnauthenticated
	}
	if err != nil {
		return "", court.Member{}, err
	}
	if err := CheckPassword(m.PasswordHash, password); err != nil {
		return "", court.Member{}, court.ErrUnauthenticated
	}
	token, err := a.tokens.Issue(m)
	if err != nil {
		return "", court.Member{}, err
	}
	return token, m, nil
}

// =============================================================================
// PASSWORDS
// =============================================================================

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) error {
	if hash == "" {
		return errors.New("no password set")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
