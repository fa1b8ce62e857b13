package delivery

import (
	"net/http"
	"strings"

	"sage-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID      = "userID"
	ContextAccessToken = "accessToken"

	SessionHeader = "X-Session-Token"
)

// SessionMiddleware resolves the signed-in user from the session cookie or header.
func SessionMiddleware(sessions usecase.SessionUsecase, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			token = c.GetHeader(SessionHeader)
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session required"})
			c.Abort()
			return
		}

		userID, err := sessions.ValidateSession(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// MailCredentialMiddleware requires the mail provider access token as a Bearer credential.
func MailCredentialMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		c.Set(ContextAccessToken, strings.TrimSpace(parts[1]))
		c.Next()
	}
}
