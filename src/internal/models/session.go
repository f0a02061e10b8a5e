package models

import "time"

type Session struct {
	SessionID    string     `json:"sessionId" bson:"session_id"`
	MemberID     string     `json:"memberId" bson:"member_id"`
	IsActive     bool       `json:"isActive" bson:"is_active"`
	CreatedAt    time.Time  `json:"createdAt" bson:"created_at"`
	LastActiveAt time.Time  `json:"lastActiveAt" bson:"last_active_at"`
	LogoutAt     *time.Time `json:"logoutAt,omitempty" bson:"logout_at,omitempty"`
	IPAddress    string     `json:"ipAddress,omitempty" bson:"ip_address,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty" bson:"user_agent,omitempty"`
}

// Expired reports whether the idle window has elapsed since the last activity.
func (s *Session) Expired(timeoutSeconds int, now time.Time) bool {
	deadline := s.LastActiveAt.Add(time.Duration(timeoutSeconds) * time.Second)
	return now.After(deadline)
}

// SessionInfoResponse is the body of GET /api/v1/session/info.
type SessionInfoResponse struct {
	TimeoutSeconds int `json:"timeoutSeconds"`
}

// SessionPingResponse is the body of POST /api/v1/session/ping.
type SessionPingResponse struct {
	Alive bool `json:"alive"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token          string `json:"token"`
	SessionID      string `json:"sessionId"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}
