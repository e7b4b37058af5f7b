package auth

import (
	"errors"

	"github.com/google/uuid"
)

// User types stored in users.user_type.
const (
	UserTypeRegistered = "registered"
	UserTypeGuest      = "guest"
)

var (
	ErrEmailRequired      = errors.New("email required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotGuest           = errors.New("account is not a guest")
	ErrUserNotFound       = errors.New("user not found")
)

// User represents an authenticated user (registered or guest).
type User struct {
	ID          uuid.UUID
	Email       *string
	DisplayName string
	UserType    string // "registered" or "guest"
	IsGuest     bool
}

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// RegisterRequest for email/password registration.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest for email/password authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GuestRequest for creating ephemeral guest accounts.
type GuestRequest struct {
	DeviceFingerprint string `json:"device_fingerprint"`
	DisplayName       string `json:"display_name"`
}

// ConvertGuestRequest upgrades a guest to registered account.
type ConvertGuestRequest struct {
	GuestID  uuid.UUID `json:"-"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
}

// OAuthProvider constants.
const (
	OAuthProviderGoogle = "google"
)
