package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind separates access tokens from refresh tokens. Each kind has its own
// secret and audience, so one can never stand in for the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims identify a player on quiz, leaderboard and profile requests.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	UserType    string    `json:"user_type"`
	IsGuest     bool      `json:"is_guest"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // default: 1 hour
	RefreshTTL    time.Duration // default: 7 days
	Issuer        string
	// Leeway tolerates clock skew between API replicas.
	Leeway time.Duration
}

type signing struct {
	secret   []byte
	ttl      time.Duration
	audience string
}

// Manager issues and checks the token pair handed to players.
type Manager struct {
	kinds  map[Kind]signing
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewManager creates a JWT token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "quizmind"
	}
	if cfg.Leeway < 0 {
		cfg.Leeway = 0
	}

	return &Manager{
		kinds: map[Kind]signing{
			KindAccess:  {secret: cfg.AccessSecret, ttl: cfg.AccessTTL, audience: cfg.Issuer + ":" + string(KindAccess)},
			KindRefresh: {secret: cfg.RefreshSecret, ttl: cfg.RefreshTTL, audience: cfg.Issuer + ":" + string(KindRefresh)},
		},
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}
}

// AccessTTL reports the lifetime of access tokens.
func (m *Manager) AccessTTL() time.Duration {
	return m.kinds[KindAccess].ttl
}

// User is the account snapshot baked into a token.
type User struct {
	ID          uuid.UUID
	Email       *string
	DisplayName string
	UserType    string
	IsGuest     bool
}

// GenerateAccessToken creates a short-lived access token.
func (m *Manager) GenerateAccessToken(user User) (string, error) {
	return m.Issue(KindAccess, user)
}

// GenerateRefreshToken creates a long-lived refresh token.
func (m *Manager) GenerateRefreshToken(user User) (string, error) {
	return m.Issue(KindRefresh, user)
}

// Issue signs a token of kind for user.
func (m *Manager) Issue(kind Kind, user User) (string, error) {
	cfg, ok := m.kinds[kind]
	if !ok {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}
	if user.ID == uuid.Nil {
		return "", fmt.Errorf("issue %s token: missing user id", kind)
	}

	now := m.now()
	claims := Claims{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		UserType:    user.UserType,
		IsGuest:     user.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{cfg.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if user.Email != nil {
		claims.Email = *user.Email
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.secret)
}

// ValidateAccessToken parses and validates an access token.
func (m *Manager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return m.Validate(KindAccess, tokenString)
}

// ValidateRefreshToken parses and validates a refresh token.
func (m *Manager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return m.Validate(KindRefresh, tokenString)
}

// Validate checks signature, issuer, audience and lifetime for kind. The
// subject must agree with the user_id claim.
func (m *Manager) Validate(kind Kind, tokenString string) (*Claims, error) {
	cfg, ok := m.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, kind)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(cfg.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("%w: subject does not match user", ErrInvalidToken)
	}
	return claims, nil
}
