package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"consensus-trading-bot/config"
)

// AuthManager guards the status API with a single operator token. Login
// compares the presented token against a bcrypt hash and answers with a
// short-lived JWT.
type AuthManager struct {
	secret        []byte
	tokenHash     string
	tokenDuration time.Duration
}

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// NewAuthManager creates an auth manager from configuration.
func NewAuthManager(cfg config.AuthConfig) *AuthManager {
	return &AuthManager{
		secret:        []byte(cfg.JWTSecret),
		tokenHash:     cfg.APITokenHash,
		tokenDuration: cfg.TokenDuration,
	}
}

// Login validates the operator token and returns a signed JWT.
func (m *AuthManager) Login(token string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(m.tokenHash), []byte(token)); err != nil {
		return "", err
	}

	now := time.Now()
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "trading-bot",
		},
	})
	return jwtToken.SignedString(m.secret)
}

// Validate parses and verifies a JWT.
func (m *AuthManager) Validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// Middleware creates a JWT authentication middleware
func Middleware(m *AuthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		if err := m.Validate(parts[1]); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
