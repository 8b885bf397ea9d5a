package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"farmfleet/pkg/roles"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, auth *Authenticator, required roles.Role) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", auth.JWTMiddleware(), Authorize(required), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return router
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("")
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	auth, err := NewAuthenticator("secret")
	require.NoError(t, err)
	other, err := NewAuthenticator("other-secret")
	require.NoError(t, err)

	moderatorToken, err := auth.GenerateJWT("42", "moderator", "mod")
	require.NoError(t, err)
	userToken, err := auth.GenerateJWT("7", "user", "plain")
	require.NoError(t, err)
	forged, err := other.GenerateJWT("42", "admin", "mallory")
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"insufficient role", "Bearer " + userToken, http.StatusForbidden},
		{"allowed", "Bearer " + moderatorToken, http.StatusOK},
	}

	router := newRouter(t, auth, roles.Moderator)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestUserIDFromClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Equal(t, int64(0), UserID(c))

	c.Set(ContextUserID, "15")
	assert.Equal(t, int64(15), UserID(c))

	c.Set(ContextUserID, float64(9))
	assert.Equal(t, int64(9), UserID(c))

	c.Set(ContextUserID, "not-a-number")
	assert.Equal(t, int64(0), UserID(c))
}
