package middleware

import (
	"net/http"
	"strings"

	"reunion-member-svc/src/internal/auth"
	"reunion-member-svc/src/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware validates the session token and the live session behind it.
type AuthMiddleware struct {
	tokens   *auth.Manager
	sessions session.Service
}

func NewAuthMiddleware(tokens *auth.Manager, sessions session.Service) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		sessions: sessions,
	}
}

// RequireSession validates the JWT and checks that the session it names is
// still alive server-side. Valid requests slide the idle window.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is required",
			})
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			logrus.WithError(err).Debug("JWT token validation failed")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		alive, err := m.sessions.Validate(c.Request.Context(), claims.MemberID, claims.SessionID)
		if err != nil {
			logrus.WithError(err).Error("Session validation failed")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Session validation error",
			})
			c.Abort()
			return
		}

		if !alive {
			logrus.WithField("session_id", claims.SessionID).Warn("Session is invalid or expired")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired - please login again",
			})
			c.Abort()
			return
		}

		c.Set("member_id", claims.MemberID)
		c.Set("session_id", claims.SessionID)
		c.Set("member_email", claims.Email)

		logrus.WithFields(logrus.Fields{
			"member_id":  claims.MemberID,
			"session_id": claims.SessionID,
		}).Debug("Member authenticated successfully")

		c.Next()
	}
}

func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		logrus.Debug("Invalid authorization header format")
		return ""
	}

	return strings.TrimPrefix(authHeader, "Bearer ")
}
