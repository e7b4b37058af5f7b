package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/auth/jwt"
	"github.com/gokatarajesh/quizmind/internal/db/repository"
	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type userRepository interface {
	Create(ctx context.Context, params sqlcgen.CreateUserParams) (sqlcgen.User, error)
	GetByEmail(ctx context.Context, email string) (sqlcgen.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (sqlcgen.User, error)
	PromoteGuest(ctx context.Context, params sqlcgen.PromoteGuestToRegisteredParams) (sqlcgen.User, error)
	UpdateLogin(ctx context.Context, userID uuid.UUID) error
}

var _ userRepository = (*repository.UserRepository)(nil)

// Service handles authentication and user management.
type Service struct {
	userRepo userRepository
	tokenMgr *jwt.Manager
	logger   zerolog.Logger
}

// ServiceOptions configures the auth service.
type ServiceOptions struct {
	TokenConfig jwt.TokenConfig
}

// NewService creates an authentication service.
func NewService(userRepo userRepository, opts ServiceOptions, logger zerolog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		tokenMgr: jwt.NewManager(opts.TokenConfig),
		logger:   logger.With().Str("component", "auth").Logger(),
	}
}

// Register creates a new registered user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, *TokenPair, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, nil, ErrEmailRequired
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	dbUser, err := s.userRepo.Create(ctx, sqlcgen.CreateUserParams{
		Email:        repository.PGText(email),
		PasswordHash: repository.PGText(passwordHash),
		DisplayName:  repository.PGText(displayName),
		UserType:     repository.PGText(UserTypeRegistered),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, tokens, nil
}

// Login authenticates a user with email/password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*User, *TokenPair, error) {
	dbUser, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !dbUser.PasswordHash.Valid {
		return nil, nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(dbUser.PasswordHash.String, req.Password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user := toUser(dbUser)
	if err := s.userRepo.UpdateLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("update last login failed")
	}

	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return user, tokens, nil
}

// CreateGuest creates an ephemeral guest account.
func (s *Service) CreateGuest(ctx context.Context, req GuestRequest) (*User, *TokenPair, error) {
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = "Guest-" + uuid.NewString()[:8]
	}

	metadata, err := json.Marshal(map[string]string{
		"device_fingerprint": req.DeviceFingerprint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("encode guest metadata: %w", err)
	}

	dbUser, err := s.userRepo.Create(ctx, sqlcgen.CreateUserParams{
		Email:        pgtype.Text{}, // null for guests
		PasswordHash: pgtype.Text{}, // null for guests
		DisplayName:  repository.PGText(displayName),
		UserType:     repository.PGText(UserTypeGuest),
		Metadata:     metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create guest: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("guest created")
	return user, tokens, nil
}

// ConvertGuest upgrades a guest account to registered, keeping its history.
func (s *Service) ConvertGuest(ctx context.Context, req ConvertGuestRequest) (*User, *TokenPair, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, nil, ErrEmailRequired
	}

	current, err := s.userRepo.GetByID(ctx, req.GuestID)
	if err != nil {
		return nil, nil, ErrUserNotFound
	}
	if current.UserType != UserTypeGuest {
		return nil, nil, ErrNotGuest
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	dbUser, err := s.userRepo.PromoteGuest(ctx, sqlcgen.PromoteGuestToRegisteredParams{
		UserID:       repository.PGUUID(req.GuestID),
		Email:        repository.PGText(email),
		PasswordHash: repository.PGText(passwordHash),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("convert guest: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("guest converted to registered")
	return user, tokens, nil
}

// RefreshToken issues a fresh token pair from a refresh token.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenMgr.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	dbUser, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return s.generateTokenPair(*toUser(dbUser))
}

// Me loads the current account.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	dbUser, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return toUser(dbUser), nil
}

// ValidateToken validates an access token and returns user claims.
func (s *Service) ValidateToken(tokenString string) (*jwt.Claims, error) {
	return s.tokenMgr.ValidateAccessToken(tokenString)
}

// loginOrCreateOAuth returns the account for info.Email, creating it on first login.
func (s *Service) loginOrCreateOAuth(ctx context.Context, provider string, info *OAuthUserInfo) (*User, *TokenPair, error) {
	email := normalizeEmail(info.Email)
	if email == "" {
		return nil, nil, fmt.Errorf("OAuth provider did not return email")
	}

	dbUser, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.userRepo.UpdateLogin(ctx, repository.FromPGUUID(dbUser.UserID)); err != nil {
			s.logger.Warn().Err(err).Msg("update last login failed")
		}
	case errors.Is(err, pgx.ErrNoRows):
		metadata, err := json.Marshal(map[string]string{
			"oauth_provider": provider,
			"oauth_id":       info.ProviderID,
			"avatar_url":     info.AvatarURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("encode oauth metadata: %w", err)
		}
		displayName := info.Name
		if displayName == "" {
			displayName = email
		}
		dbUser, err = s.userRepo.Create(ctx, sqlcgen.CreateUserParams{
			Email:        repository.PGText(email),
			PasswordHash: pgtype.Text{}, // null for OAuth users
			DisplayName:  repository.PGText(displayName),
			UserType:     repository.PGText(UserTypeRegistered),
			Metadata:     metadata,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create OAuth user: %w", err)
		}
		s.logger.Info().Str("provider", provider).Msg("OAuth user created")
	default:
		return nil, nil, fmt.Errorf("lookup email: %w", err)
	}

	user := toUser(dbUser)
	tokens, err := s.generateTokenPair(*user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}
	return user, tokens, nil
}

func (s *Service) generateTokenPair(user User) (*TokenPair, error) {
	jwtUser := jwt.User{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		UserType:    user.UserType,
		IsGuest:     user.IsGuest,
	}

	accessToken, err := s.tokenMgr.GenerateAccessToken(jwtUser)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokenMgr.GenerateRefreshToken(jwtUser)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenMgr.AccessTTL().Seconds()),
	}, nil
}

func toUser(dbUser sqlcgen.User) *User {
	user := &User{
		ID:          repository.FromPGUUID(dbUser.UserID),
		DisplayName: dbUser.DisplayName,
		UserType:    dbUser.UserType,
		IsGuest:     dbUser.UserType == UserTypeGuest,
	}
	if dbUser.Email.Valid {
		email := dbUser.Email.String
		user.Email = &email
	}
	return user
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
