package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"

	tokenTTL = 120 * time.Hour
)

// Authenticator verifies tokens issued by the identity service. Tokens are
// HMAC signed with a shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is not set")
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// GenerateJWT issues a token with the claims the middleware expects. The
// identity service owns issuance; this exists for tooling and tests.
func (a *Authenticator) GenerateJWT(userID string, role string, username string) (string, error) {
	claims := jwt.MapClaims{
		"userID":   userID,
		"role":     role,
		"username": username,
		"exp":      a.now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Authenticator) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}

// UserID returns the acting user placed on the context by JWTMiddleware, or
// 0 when the request is anonymous.
func UserID(c *gin.Context) int64 {
	raw, exists := c.Get(ContextUserID)
	if !exists {
		return 0
	}

	switch v := raw.(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return id
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
