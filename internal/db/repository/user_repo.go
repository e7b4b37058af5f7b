package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type userStore interface {
	CreateUser(ctx context.Context, arg sqlcgen.CreateUserParams) (sqlcgen.User, error)
	GetUserByEmail(ctx context.Context, email pgtype.Text) (sqlcgen.User, error)
	GetUserByID(ctx context.Context, userID pgtype.UUID) (sqlcgen.User, error)
	PromoteGuestToRegistered(ctx context.Context, arg sqlcgen.PromoteGuestToRegisteredParams) (sqlcgen.User, error)
	UpdateUserLogin(ctx context.Context, userID pgtype.UUID) error
}

// UserRepository exposes typed DB operations required by auth flows.
type UserRepository struct {
	store userStore
}

// NewUserRepository wraps sqlc Queries for user-specific operations.
func NewUserRepository(store userStore) *UserRepository {
	return &UserRepository{store: store}
}

// Create inserts a registered or guest account.
func (r *UserRepository) Create(ctx context.Context, params sqlcgen.CreateUserParams) (sqlcgen.User, error) {
	return r.store.CreateUser(ctx, params)
}

// GetByEmail fetches a user by email if present.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (sqlcgen.User, error) {
	return r.store.GetUserByEmail(ctx, pgtype.Text{String: email, Valid: true})
}

// PromoteGuest upgrades a guest to registered in a single update.
func (r *UserRepository) PromoteGuest(ctx context.Context, params sqlcgen.PromoteGuestToRegisteredParams) (sqlcgen.User, error) {
	return r.store.PromoteGuestToRegistered(ctx, params)
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (sqlcgen.User, error) {
	return r.store.GetUserByID(ctx, PGUUID(userID))
}

// UpdateLogin records the last login timestamp.
func (r *UserRepository) UpdateLogin(ctx context.Context, userID uuid.UUID) error {
	return r.store.UpdateUserLogin(ctx, PGUUID(userID))
}

// PGUUID converts a uuid into its pgtype form.
func PGUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// FromPGUUID converts a pgtype UUID back, returning uuid.Nil when NULL.
func FromPGUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

// PGText wraps s as a nullable text value; empty strings become NULL.
func PGText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
