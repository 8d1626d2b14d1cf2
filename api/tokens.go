package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const tokenTTL = time.Hour

var (
	errInvalidToken = errors.New("invalid token")
	errExpiredToken = errors.New("expired token")
)

type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies session tokens. The secret is fixed for the
// lifetime of the process.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func newTokenIssuer(secret string) (*tokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token signing secret must not be empty")
	}
	return &tokenIssuer{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

func (ti *tokenIssuer) issue(userID uuid.UUID) (string, error) {
	issuedAt := ti.now()
	claims := sessionClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

func (ti *tokenIssuer) verify(tokenStr string) (uuid.UUID, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return uuid.Nil, errExpiredToken
		default:
			return uuid.Nil, errInvalidToken
		}
	}
	if !token.Valid || claims.ExpiresAt == nil {
		return uuid.Nil, errInvalidToken
	}
	// The parser checks exp against the wall clock; check the issuer clock too.
	if !ti.now().Before(claims.ExpiresAt.Time) {
		return uuid.Nil, errExpiredToken
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, errInvalidToken
	}
	return userID, nil
}
