// Package auth holds the credential primitives of the service: the JWT codec
// for access/refresh tokens, the bcrypt hasher, request identity and the
// role gate.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is written to and required in every token.
const Issuer = "estately"

// Leeway tolerated when checking token expiry.
const Leeway = 5 * time.Second

// Kind tags a token with the operation that may consume it.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrTokenExpired: the token is well-formed and correctly signed but past
	// its expiry. Access-token holders should refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid: malformed, badly signed, wrong algorithm or issuer.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenKind: a valid token of the other kind.
	ErrTokenKind = errors.New("wrong token kind")
)

// Claims is the payload of both token kinds. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Kind  Kind   `json:"kind"`
}

// TokenPair is the result of a successful login, registration or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Codec signs and verifies HS256 tokens.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock replaces the wall clock used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration, opts ...CodecOption) *Codec {
	c := &Codec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue signs a fresh access/refresh pair for the subject.
func (c *Codec) Issue(subjectID, email string, role Role) (*TokenPair, error) {
	now := c.now()

	access, accessExp, err := c.sign(subjectID, email, role, KindAccess, now, c.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := c.sign(subjectID, email, role, KindRefresh, now, c.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (c *Codec) sign(subjectID, email string, role Role, kind Kind, now time.Time, ttl time.Duration) (string, time.Time, error) {
	// JWT timestamps have second precision.
	exp := now.Add(ttl).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
		Kind:  kind,
	})

	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// Verify checks signature, issuer and expiry, then the kind. It returns one
// of ErrTokenExpired, ErrTokenInvalid or ErrTokenKind on failure.
func (c *Codec) Verify(tokenString string, want Kind) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != want {
		return nil, ErrTokenKind
	}

	return claims, nil
}
