// source: users.sql

package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (email, password_hash, display_name, user_type, metadata)
VALUES (
    $1,
    $2,
    COALESCE($3, ''),
    COALESCE($4, 'registered'),
    COALESCE($5, '{}'::jsonb)
)
RETURNING user_id, email, password_hash, display_name, user_type, metadata, created_at, last_login_at
`

type CreateUserParams struct {
	Email        pgtype.Text `json:"email"`
	PasswordHash pgtype.Text `json:"password_hash"`
	DisplayName  pgtype.Text `json:"display_name"`
	UserType     pgtype.Text `json:"user_type"`
	Metadata     []byte      `json:"metadata"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Email,
		arg.PasswordHash,
		arg.DisplayName,
		arg.UserType,
		arg.Metadata,
	)
	var i User
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.UserType,
		&i.Metadata,
		&i.CreatedAt,
		&i.LastLoginAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT user_id, email, password_hash, display_name, user_type, metadata, created_at, last_login_at FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email pgtype.Text) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.UserType,
		&i.Metadata,
		&i.CreatedAt,
		&i.LastLoginAt,
	)
	return i, err
}

const getUserByID = `-- name: GetUserByID :one
SELECT user_id, email, password_hash, display_name, user_type, metadata, created_at, last_login_at FROM users WHERE user_id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, userID pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, userID)
	var i User
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.UserType,
		&i.Metadata,
		&i.CreatedAt,
		&i.LastLoginAt,
	)
	return i, err
}

const promoteGuestToRegistered = `-- name: PromoteGuestToRegistered :one
UPDATE users
SET email = $2, password_hash = $3, user_type = 'registered'
WHERE user_id = $1 AND user_type = 'guest'
RETURNING user_id, email, password_hash, display_name, user_type, metadata, created_at, last_login_at
`

type PromoteGuestToRegisteredParams struct {
	UserID       pgtype.UUID `json:"user_id"`
	Email        pgtype.Text `json:"email"`
	PasswordHash pgtype.Text `json:"password_hash"`
}

func (q *Queries) PromoteGuestToRegistered(ctx context.Context, arg PromoteGuestToRegisteredParams) (User, error) {
	row := q.db.QueryRow(ctx, promoteGuestToRegistered, arg.UserID, arg.Email, arg.PasswordHash)
	var i User
	err := row.Scan(
		&i.UserID,
		&i.Email,
		&i.PasswordHash,
		&i.DisplayName,
		&i.UserType,
		&i.Metadata,
		&i.CreatedAt,
		&i.LastLoginAt,
	)
	return i, err
}

const updateUserLogin = `-- name: UpdateUserLogin :exec
UPDATE users SET last_login_at = now() WHERE user_id = $1
`

func (q *Queries) UpdateUserLogin(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, updateUserLogin, userID)
	return err
}
