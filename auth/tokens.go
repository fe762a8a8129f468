package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to one use so a reset token cannot open a session.
type Purpose string

const (
	PurposeSession Purpose = "session"
	PurposeReset   Purpose = "reset"
	PurposeVerify  Purpose = "verify"
)

// Token lifetimes.
const (
	SessionTTL = 7 * 24 * time.Hour
	ResetTTL   = time.Hour
	VerifyTTL  = 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the JWT payload for every token purpose.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a numeric user id.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// Tokens issues and verifies HS256 tokens. Session tokens and the
// reset/verify tokens are signed with separate secrets.
type Tokens struct {
	sessionSecret []byte
	tokenSecret   []byte
	now           func() time.Time
}

// NewTokens builds a token service from the two signing secrets.
func NewTokens(sessionSecret, tokenSecret string) *Tokens {
	return &Tokens{
		sessionSecret: []byte(sessionSecret),
		tokenSecret:   []byte(tokenSecret),
		now:           time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

func ttlFor(p Purpose) time.Duration {
	switch p {
	case PurposeReset:
		return ResetTTL
	case PurposeVerify:
		return VerifyTTL
	default:
		return SessionTTL
	}
}

func (t *Tokens) secretFor(p Purpose) []byte {
	if p == PurposeSession {
		return t.sessionSecret
	}
	return t.tokenSecret
}

// Issue signs a token for the user and returns it with its expiry.
func (t *Tokens) Issue(p Purpose, userID uint) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttlFor(p))
	claims := Claims{
		Purpose: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secretFor(p))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses a token of the given purpose. It returns ErrExpiredToken
// for a well-formed token past its expiry and ErrInvalidToken otherwise.
func (t *Tokens) Verify(p Purpose, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secretFor(p), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Purpose != p {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
