package token

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means the request carried no bearer token at all.
	ErrMissingToken = errors.New("token not set")
	// ErrInvalidToken covers bad signatures, malformed tokens, and expiry.
	ErrInvalidToken = errors.New("token not valid")
)

// Principal is the decoded identity carried by a signed token. The role is
// embedded at issuance and trusted for the token's lifetime; changing a
// user's role takes effect when they next sign in.
type Principal struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Claims is the JWT payload: the principal plus registered claims.
type Claims struct {
	Principal
	jwt.RegisteredClaims
}

// Issuer signs and verifies bearer tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Sign issues a signed token for the principal, valid for the issuer TTL.
func (i *Issuer) Sign(p Principal) (string, error) {
	claims := &Claims{
		Principal: p,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.secret)
}

// Verify checks the token's signature and expiry and returns the embedded
// principal. Verification is pure computation; no store lookup happens.
func (i *Issuer) Verify(tokenString string) (Principal, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !t.Valid {
		return Principal{}, ErrInvalidToken
	}
	return claims.Principal, nil
}

// FromHeader extracts the raw token from an "Authorization: Bearer <token>"
// header. Returns ErrMissingToken when the header is absent or empty.
func FromHeader(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return "", ErrMissingToken
	}
	return raw, nil
}
