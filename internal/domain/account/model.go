package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilocker/medilocker/internal/platform/auth"
)

// Account statuses. Only active accounts may sign in.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusInactive  = "inactive"
)

const minPasswordLength = 8

// Admin is the login identity of a patient or hospital account.
type Admin struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Phone         string     `json:"phone"`
	UserType      string     `json:"userType"`
	AccountStatus string     `json:"accountStatus"`
	EmailVerified bool       `json:"emailVerified"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (a *Admin) Identity() auth.Identity {
	return auth.Identity{AdminID: a.ID, Email: a.Email, UserType: a.UserType}
}

func (a *Admin) IsActive() bool { return a.AccountStatus == StatusActive }

// Session is returned by register, login and refresh.
type Session struct {
	Admin *Admin `json:"admin"`
	*auth.TokenPair
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	UserType string `json:"userType"`
	FullName string `json:"fullName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}
