package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/ec-storefront/internal/domain/apperr"
	"github.com/example/ec-storefront/internal/domain/model"
)

const DefaultTokenTTL = 15 * time.Minute

var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("token has expired: %w", apperr.ErrUnauthorized)
)

// Claims represents JWT claims
type Claims struct {
	UserID string     `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Gateway issues bearer credentials and turns presented ones back into a
// Session. Credentials are HS256 JWTs and carry everything a request needs,
// so validation never touches the store.
type Gateway struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewGateway(secretKey string, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Gateway{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue creates an access token for u.
func (g *Gateway) Issue(u *model.User) (string, time.Time, error) {
	now := g.now()
	expiresAt := now.Add(g.ttl)

	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   u.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(g.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateCredential checks signature and expiry and returns the session the
// token was issued for.
func (g *Gateway) ValidateCredential(tokenString string) (Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return g.secretKey, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, ErrExpiredToken
		}
		return Session{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Session{}, ErrInvalidToken
	}
	if claims.Role != model.RoleCustomer && claims.Role != model.RoleAdmin {
		return Session{}, ErrInvalidToken
	}

	return Session{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

func (g *Gateway) TTL() time.Duration {
	return g.ttl
}
