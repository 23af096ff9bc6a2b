// Package auth provides token issuance/verification, password hashing and
// the HTTP guard that turns a bearer token into an authenticated caller.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client registers or logs in with username/password
//  2. Server verifies the bcrypt hash and issues a signed JWT
//  3. Client sends "Authorization: Bearer <jwt>" on every request
//  4. RequireAuth verifies the JWT and stores a Caller in the request context
//  5. RequireOwner compares the Caller with the {id} path parameter
//
// Tokens are stateless: nothing is stored server-side and nothing is revoked.
// A token is valid until it expires.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","exp":...,"iat":...,"iss":"acme-skills"}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the lifetime of every issued token. It is applied
	// uniformly: register, login and GitHub sign-in all issue the same TTL.
	DefaultTokenTTL = time.Hour

	issuer = "acme-skills"

	// bearerScheme is compared case-insensitively.
	bearerScheme = "bearer"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, wrong
	// algorithm or issuer, and tokens without a subject.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired is returned for a well-formed, correctly signed token
	// whose exp claim is in the past.
	ErrTokenExpired = errors.New("auth: token expired")
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. A zero ttl selects DefaultTokenTTL.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL reports the lifetime applied to issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. The user id lives in the standard "sub" claim.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a new token for the given userID, valid for the
// service's TTL.
func (s *TokenService) Issue(userID string) (string, error) {
	return s.IssueWithTTL(userID, s.ttl)
}

// IssueWithTTL creates a token with a custom lifetime.
// Used in tests (a negative duration yields an already-expired token).
func (s *TokenService) IssueWithTTL(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue a token without a user id")
	}

	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a token and returns the user id in its "sub"
// claim. The value may be the raw token or carry a "Bearer " scheme prefix;
// both are accepted.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and exp is present
//   - Issuer matches
//   - Algorithm is HS256 (prevents the "alg: none" confusion attack)
func (s *TokenService) Verify(raw string) (string, error) {
	tokenStr := StripBearer(raw)
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}

	return c.Subject, nil
}

// StripBearer normalises an Authorization header value to the bare token.
//
//	"Bearer abc"  → "abc"
//	"bearer  abc" → "abc"
//	"abc"         → "abc"
func StripBearer(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > len(bearerScheme) && strings.EqualFold(value[:len(bearerScheme)], bearerScheme) {
		rest := value[len(bearerScheme):]
		// Only a scheme if followed by whitespace; "bearerXYZ" is a raw token.
		if rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return value
}
