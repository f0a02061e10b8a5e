package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
	ErrRedisDelete     = errors.New("redis delete error")
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionInactive = errors.New("session inactive")
	ErrSessionCreating = errors.New("error creating session")
	ErrSessionUpdating = errors.New("error updating session")
	ErrSessionDeleting = errors.New("error deleting session")
	ErrTooManySessions = errors.New("too many active sessions")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrDatabaseUpdate     = errors.New("database update error")
	ErrMemberNotFound     = errors.New("member not found")
	ErrMemberInactive     = errors.New("member not active")
	ErrBadCredentials     = errors.New("invalid email or password")
)

// ErrUnauthorized is the client-side sentinel for an HTTP 401/403 from the
// session API: the server no longer recognizes the session.
var ErrUnauthorized = errors.New("session not authorized")
