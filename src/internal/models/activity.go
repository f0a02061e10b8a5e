package models

import "time"

type ActivityMessage struct {
	MemberID    string            `json:"member_id"`
	SessionID   string            `json:"session_id"`
	ServiceName string            `json:"service_name"`
	Action      string            `json:"action"`
	IPAddress   string            `json:"ip_address,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Activity action constants
const (
	ActionLoggedIn     = "logged_in"
	ActionLoggedOut    = "logged_out"
	ActionSessionPing  = "session_ping"
	ActionSessionCheck = "session_check"
)

// Service name constants
const (
	ServiceSessionPing   = "member.handler.session_ping"
	ServiceSessionLogin  = "member.handler.login"
	ServiceSessionLogout = "member.handler.logout"
	ServiceAuth          = "member.middleware.auth"
)
