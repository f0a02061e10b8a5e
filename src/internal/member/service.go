package member

import (
	"context"
	"errors"

	"reunion-member-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Authenticate(ctx context.Context, email, password string) (*Member, error)
}

type memberService struct {
	repository Repository
}

func NewMemberService(repository Repository) Service {
	return &memberService{repository: repository}
}

// Authenticate verifies member credentials. It returns ErrBadCredentials for
// both unknown emails and wrong passwords so callers cannot probe accounts.
func (s *memberService) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	member, err := s.repository.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			return nil, models.ErrBadCredentials
		}
		return nil, err
	}

	if member.Status != StatusActive {
		logrus.WithFields(logrus.Fields{
			"member_id": member.ID.Hex(),
			"status":    member.Status,
		}).Warn("Login attempt for non-active member")
		return nil, models.ErrMemberInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		if recordErr := s.repository.RecordFailedLogin(ctx, member.ID.Hex()); recordErr != nil {
			logrus.WithError(recordErr).Warn("Failed to record failed login attempt")
		}
		return nil, models.ErrBadCredentials
	}

	if err := s.repository.RecordLogin(ctx, member.ID.Hex()); err != nil {
		logrus.WithError(err).Warn("Failed to record successful login")
	}

	return member, nil
}
