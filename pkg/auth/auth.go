// Package auth guards the relay with a single configured identity and
// HS256-signed bearer tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials rejects a login attempt.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken rejects a bearer token.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Config describes the single identity allowed to use the relay.
type Config struct {
	Username string
	// PasswordHash is a bcrypt hash. When empty, Password is hashed at
	// construction time.
	PasswordHash string
	Password     string
	Secret       string
	// TokenTTL bounds token lifetime; zero issues tokens without expiry.
	TokenTTL time.Duration
}

// Claims is the token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Gate issues and verifies tokens.
type Gate struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewGate validates cfg and prepares the password hash.
func NewGate(cfg Config) (*Gate, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("auth: username is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	hash := []byte(strings.TrimSpace(cfg.PasswordHash))
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, errors.New("auth: password or password hash is required")
		}
		encoded, err := HashPassword(cfg.Password)
		if err != nil {
			return nil, err
		}
		hash = []byte(encoded)
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("auth: password hash: %w", err)
	}
	return &Gate{
		username: username,
		hash:     hash,
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}, nil
}

// HashPassword returns a bcrypt hash suitable for Config.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// Username is the configured identity.
func (g *Gate) Username() string { return g.username }

// Login checks the credentials and returns a signed token.
func (g *Gate) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(g.hash, []byte(password))
	if !userOK || passErr != nil {
		return "", ErrInvalidCredentials
	}
	now := g.now()
	claims := Claims{
		Username: g.username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if g.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(g.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify validates token and returns the username it was issued to.
func (g *Gate) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Username), []byte(g.username)) != 1 {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
