// Package auth issues and validates the operator tokens that guard mutating
// routes. A single operator account is configured through the environment.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleOperator = "operator"
	issuer       = "clicksprout"
	tokenPrefix  = "operator_token:"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Operator is the configured login
type Operator struct {
	Username     string
	PasswordHash string
}

// Verify compares the login against the bcrypt hash
func (o Operator) Verify(username, password string) error {
	if o.PasswordHash == "" || username != o.Username {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a value suitable for OPERATOR_PASSWORD_HASH
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Issuer signs operator tokens. With a Redis client every token id is
// recorded so tokens can be revoked before they expire.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
}

func NewIssuer(secret string, ttl time.Duration, rdb *redis.Client) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, rdb: rdb}
}

// Enabled reports whether a signing secret is configured
func (i *Issuer) Enabled() bool {
	return i != nil && len(i.secret) > 0
}

func (i *Issuer) Issue(ctx context.Context, username string) (*Token, error) {
	if !i.Enabled() {
		return nil, errors.New("token signing is not configured")
	}
	now := time.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Username: username,
		Role:     RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	if i.rdb != nil {
		if err := i.rdb.Set(ctx, tokenPrefix+claims.ID, username, i.ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to record token: %w", err)
		}
	}

	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp}, nil
}

func (i *Issuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleOperator {
		return nil, ErrInvalidToken
	}

	if i.rdb != nil {
		exists, err := i.rdb.Exists(ctx, tokenPrefix+claims.ID).Result()
		if err != nil || exists != 1 {
			return nil, fmt.Errorf("%w: revoked or expired", ErrInvalidToken)
		}
	}
	return claims, nil
}

// Revoke forgets a token id. Without Redis tokens live until they expire.
func (i *Issuer) Revoke(ctx context.Context, jti string) error {
	if i.rdb == nil {
		return nil
	}
	return i.rdb.Del(ctx, tokenPrefix+jti).Err()
}

func ExtractTokenFromHeader(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
