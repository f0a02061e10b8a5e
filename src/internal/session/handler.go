package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"reunion-member-svc/src/clients"
	"reunion-member-svc/src/internal/auth"
	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/member"
	"reunion-member-svc/src/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler interface {
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Ping(c *gin.Context)
	Info(c *gin.Context)
}

type handler struct {
	config   *config.Configuration
	members  member.Service
	sessions Service
	tokens   *auth.Manager
	activity *clients.ActivityPublisher
}

func NewHandler(cfg *config.Configuration,
	members member.Service,
	sessions Service,
	tokens *auth.Manager,
	activity *clients.ActivityPublisher) Handler {
	return &handler{
		config:   cfg,
		members:  members,
		sessions: sessions,
		tokens:   tokens,
		activity: activity,
	}
}

func (h *handler) Login(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Email and password are required",
		})
		return
	}

	m, err := h.members.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrBadCredentials) || errors.Is(err, models.ErrMemberInactive) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid email or password",
			})
			return
		}
		logrus.WithError(err).Error("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Login failed",
		})
		return
	}

	sess, err := h.sessions.Create(ctx, m.ID.Hex(), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, models.ErrTooManySessions) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many active sessions - log out of another device first",
			})
			return
		}
		logrus.WithError(err).Error("Failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Login failed",
		})
		return
	}

	token, err := h.tokens.Generate(sess.MemberID, sess.SessionID, m.Email)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign session token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Login failed",
		})
		return
	}

	if err := h.activity.PublishActivityWithDetails(sess.MemberID, sess.SessionID,
		models.ServiceSessionLogin, models.ActionLoggedIn, c.ClientIP(), c.Request.UserAgent()); err != nil {
		logrus.WithError(err).Warn("Failed to publish login activity")
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:          token,
		SessionID:      sess.SessionID,
		TimeoutSeconds: h.config.Session.TimeoutSeconds,
	})
}

// Info returns the server-configured idle timeout so clients can arm their
// local warning schedule.
func (h *handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, models.SessionInfoResponse{
		TimeoutSeconds: h.config.Session.TimeoutSeconds,
	})
}

// Ping resets the server-side idle timer and reports whether the session is
// still alive. The auth middleware already rejected requests whose token or
// session is gone, so alive is almost always true here; the body exists so
// clients can distinguish "alive" from transport-level failures.
func (h *handler) Ping(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	memberID := c.GetString("member_id")
	sessionID := c.GetString("session_id")

	alive, err := h.sessions.Ping(ctx, memberID, sessionID)
	if err != nil {
		logrus.WithError(err).Error("Session ping failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Session ping failed",
		})
		return
	}

	if err := h.activity.PublishActivity(memberID, sessionID,
		models.ServiceSessionPing, models.ActionSessionPing); err != nil {
		logrus.WithError(err).Debug("Failed to publish ping activity")
	}

	c.JSON(http.StatusOK, models.SessionPingResponse{Alive: alive})
}

func (h *handler) Logout(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	memberID := c.GetString("member_id")
	sessionID := c.GetString("session_id")

	if err := h.sessions.Logout(ctx, memberID, sessionID); err != nil {
		logrus.WithError(err).Error("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Logout failed",
		})
		return
	}

	if err := h.activity.PublishActivity(memberID, sessionID,
		models.ServiceSessionLogout, models.ActionLoggedOut); err != nil {
		logrus.WithError(err).Warn("Failed to publish logout activity")
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), time.Duration(h.config.App.Timeout)*time.Second)
}
