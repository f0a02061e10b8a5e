package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPattern = "session:%s:%s" // session:memberID:sessionID

type Service interface {
	GetActiveSession(ctx context.Context, memberID, sessionID string) (*models.Session, error)
	CacheActiveSession(ctx context.Context, session *models.Session) error
	RefreshSessionActivity(ctx context.Context, memberID, sessionID string) error
	DeleteSession(ctx context.Context, memberID, sessionID string) error
}

type cacheService struct {
	client *redis.Client
	cfg    *config.SessionSettings
}

func NewCacheService(client *redis.Client, cfg *config.Configuration) Service {
	return &cacheService{
		client: client,
		cfg:    &cfg.Session,
	}
}

func key(memberID, sessionID string) string {
	return fmt.Sprintf(keyPattern, memberID, sessionID)
}

func (c *cacheService) GetActiveSession(ctx context.Context, memberID, sessionID string) (*models.Session, error) {
	k := key(memberID, sessionID)

	data, err := c.client.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("key", k).Debug("Session not found in cache")
			return nil, nil // Not an error, just not found
		}
		logrus.WithError(err).WithField("key", k).Error("Failed to get session from cache")
		return nil, models.ErrRedisGet
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		logrus.WithError(err).WithField("key", k).Error("Failed to unmarshal session from cache")
		return nil, models.ErrRedisGet
	}

	return &session, nil
}

// CacheActiveSession stores the session with a TTL equal to the remaining idle
// window. An already-expired session is not cached.
func (c *cacheService) CacheActiveSession(ctx context.Context, session *models.Session) error {
	k := key(session.MemberID, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		logrus.WithError(err).WithField("session_id", session.SessionID).Error("Failed to marshal session for cache")
		return models.ErrRedisSet
	}

	idleWindow := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	expiration := time.Until(session.LastActiveAt.Add(idleWindow))
	if expiration <= 0 {
		logrus.WithField("session_id", session.SessionID).Warn("Session already expired, not caching")
		return nil
	}

	if err := c.client.Set(ctx, k, data, expiration).Err(); err != nil {
		logrus.WithError(err).WithField("session_id", session.SessionID).Error("Failed to cache session")
		return models.ErrRedisSet
	}

	return nil
}

// RefreshSessionActivity slides the idle window: updates last_active_at and
// re-arms the full TTL.
func (c *cacheService) RefreshSessionActivity(ctx context.Context, memberID, sessionID string) error {
	session, err := c.GetActiveSession(ctx, memberID, sessionID)
	if err != nil || session == nil {
		return err
	}

	session.LastActiveAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal session for activity refresh")
		return models.ErrRedisSet
	}

	ttl := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	if err := c.client.Set(ctx, key(memberID, sessionID), data, ttl).Err(); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to refresh session activity")
		return models.ErrRedisSet
	}

	return nil
}

func (c *cacheService) DeleteSession(ctx context.Context, memberID, sessionID string) error {
	if err := c.client.Del(ctx, key(memberID, sessionID)).Err(); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Error("Failed to delete session from cache")
		return models.ErrRedisDelete
	}
	return nil
}
