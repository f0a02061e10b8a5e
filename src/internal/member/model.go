package member

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Member struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName           string             `json:"firstName" bson:"first_name"`
	LastName            string             `json:"lastName" bson:"last_name"`
	Email               string             `json:"email" bson:"email"`
	PasswordHash        string             `json:"-" bson:"password_hash"`
	Branch              string             `json:"branch" bson:"branch"`
	Status              string             `json:"status" bson:"status"`
	IsEmailVerified     bool               `json:"isEmailVerified" bson:"is_email_verified"`
	LastLoginAt         *time.Time         `json:"lastLoginAt,omitempty" bson:"last_login_at,omitempty"`
	FailedLoginAttempts int                `json:"failedLoginAttempts" bson:"failed_login_attempts"`
	CreatedAt           time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updated_at"`
	DeletedAt           *time.Time         `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
}

// Status constants
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)
