package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuerName = "carsi-commerce-api"

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the JWT payload issued at login and verified on every request.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HMAC bearer tokens for API sessions.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// TokenIssuerDeps enumerates TokenIssuer dependencies.
type TokenIssuerDeps struct {
	Secret string
	TTL    time.Duration
	Clock  func() time.Time
}

// NewTokenIssuer validates the dependencies and constructs a TokenIssuer.
func NewTokenIssuer(deps TokenIssuerDeps) (*TokenIssuer, error) {
	if strings.TrimSpace(deps.Secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if deps.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		secret: []byte(deps.Secret),
		ttl:    deps.TTL,
		clock:  func() time.Time { return clock().UTC() },
	}, nil
}

// Issue signs a token for the given identity. The token carries the user ID as
// subject plus email, name, and role claims.
func (t *TokenIssuer) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", errors.New("auth: identity user id is required")
	}
	now := t.clock()
	claims := Claims{
		Email: identity.Email,
		Name:  identity.Name,
		Role:  strings.ToLower(strings.TrimSpace(identity.Role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuerName,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token, returning the embedded identity.
func (t *TokenIssuer) Verify(tokenStr string) (*Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %q", token.Method.Alg())
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.clock), jwt.WithIssuer(tokenIssuerName))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   strings.ToLower(strings.TrimSpace(claims.Role)),
	}, nil
}
