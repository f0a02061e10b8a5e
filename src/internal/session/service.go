package session

import (
	"context"
	"time"

	"reunion-member-svc/src/internal/cache"
	"reunion-member-svc/src/internal/config"
	"reunion-member-svc/src/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Service interface {
	Create(ctx context.Context, memberID, ipAddress, userAgent string) (*models.Session, error)
	Validate(ctx context.Context, memberID, sessionID string) (bool, error)
	Ping(ctx context.Context, memberID, sessionID string) (bool, error)
	Logout(ctx context.Context, memberID, sessionID string) error
}

type sessionService struct {
	repository   Repository
	cacheService cache.Service
	cfg          *config.SessionSettings
}

func NewSessionService(repository Repository, cacheService cache.Service, cfg *config.Configuration) Service {
	return &sessionService{
		repository:   repository,
		cacheService: cacheService,
		cfg:          &cfg.Session,
	}
}

func (s *sessionService) Create(ctx context.Context, memberID, ipAddress, userAgent string) (*models.Session, error) {
	if s.cfg.MaxPerMember > 0 {
		active, err := s.repository.CountActive(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if active >= int64(s.cfg.MaxPerMember) {
			logrus.WithFields(logrus.Fields{
				"member_id": memberID,
				"active":    active,
			}).Warn("Member has too many active sessions")
			return nil, models.ErrTooManySessions
		}
	}

	now := time.Now()
	session := &models.Session{
		SessionID:    uuid.NewString(),
		MemberID:     memberID,
		IsActive:     true,
		CreatedAt:    now,
		LastActiveAt: now,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
	}

	if err := s.repository.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.cacheService.CacheActiveSession(ctx, session); err != nil {
		// Mongo record is authoritative; a cache miss just costs a lookup later.
		logrus.WithError(err).WithField("session_id", session.SessionID).Warn("Failed to cache new session")
	}

	logrus.WithFields(logrus.Fields{
		"member_id":  memberID,
		"session_id": session.SessionID,
	}).Info("Session created")

	return session, nil
}

// Validate checks session liveness in Redis first, then MongoDB as fallback.
// A valid session has its activity refreshed in both stores.
func (s *sessionService) Validate(ctx context.Context, memberID, sessionID string) (bool, error) {
	cached, err := s.cacheService.GetActiveSession(ctx, memberID, sessionID)
	if err == nil && cached != nil {
		if err := s.cacheService.RefreshSessionActivity(ctx, memberID, sessionID); err != nil {
			logrus.WithError(err).Warn("Failed to refresh cached session activity")
		}
		if err := s.repository.UpdateActivity(ctx, sessionID); err != nil {
			logrus.WithError(err).Warn("Failed to refresh session activity in database")
		}
		return true, nil
	}

	session, err := s.repository.GetByID(ctx, sessionID)
	if err != nil {
		if err == models.ErrSessionNotFound {
			return false, nil
		}
		return false, err
	}

	if session.MemberID != memberID {
		logrus.WithFields(logrus.Fields{
			"session_id": sessionID,
			"member_id":  memberID,
		}).Warn("Session does not belong to member")
		return false, nil
	}

	if !session.IsActive {
		logrus.WithField("session_id", sessionID).Warn("Session is not active")
		return false, nil
	}

	if session.LogoutAt != nil {
		logrus.WithField("session_id", sessionID).Warn("Session has logout timestamp")
		return false, nil
	}

	if session.Expired(s.cfg.TimeoutSeconds, time.Now()) {
		logrus.WithField("session_id", sessionID).Warn("Session idle window elapsed")
		return false, nil
	}

	session.LastActiveAt = time.Now()
	if err := s.repository.UpdateActivity(ctx, sessionID); err != nil {
		logrus.WithError(err).Warn("Failed to refresh session activity in database")
	}
	if err := s.cacheService.CacheActiveSession(ctx, session); err != nil {
		logrus.WithError(err).Warn("Failed to re-cache validated session")
	}

	return true, nil
}

// Ping is Validate exposed as the keep-alive operation: it reports liveness
// and, when alive, slides the server-side idle window.
func (s *sessionService) Ping(ctx context.Context, memberID, sessionID string) (bool, error) {
	alive, err := s.Validate(ctx, memberID, sessionID)
	if err != nil {
		return false, err
	}

	logrus.WithFields(logrus.Fields{
		"member_id":  memberID,
		"session_id": sessionID,
		"alive":      alive,
	}).Debug("Session ping handled")

	return alive, nil
}

func (s *sessionService) Logout(ctx context.Context, memberID, sessionID string) error {
	if err := s.repository.MarkLoggedOut(ctx, sessionID); err != nil {
		return err
	}

	if err := s.cacheService.DeleteSession(ctx, memberID, sessionID); err != nil {
		logrus.WithError(err).WithField("session_id", sessionID).Warn("Failed to evict session from cache")
	}

	logrus.WithFields(logrus.Fields{
		"member_id":  memberID,
		"session_id": sessionID,
	}).Info("Session logged out")

	return nil
}
