package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// DBTX is the subset of pgxpool.Pool used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

const uniqueViolation = "23505"

// UserRepository defines persistence access for subjects and their stored
// credential pair.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindSubjectID(ctx context.Context, username string) (string, error)
	PasswordHash(ctx context.Context, id string) (string, error)
	PersistCredentials(ctx context.Context, id string, update domain.CredentialUpdate) (int64, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, email, pwd_hash, access_token, refresh_token)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AccessToken,
		user.RefreshToken,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUsernameTaken
	}
	return err
}

// FindSubjectID resolves a username to its subject id. Unknown usernames
// yield pgx.ErrNoRows.
func (r *userRepository) FindSubjectID(ctx context.Context, username string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&id)
	return id, err
}

func (r *userRepository) PasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT pwd_hash FROM users WHERE id=$1`, id).Scan(&hash)
	return hash, err
}

// PersistCredentials writes only the non-empty fields of update. An empty
// update touches nothing and reports zero rows.
func (r *userRepository) PersistCredentials(ctx context.Context, id string, update domain.CredentialUpdate) (int64, error) {
	if update.IsEmpty() {
		return 0, nil
	}

	sets := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if update.AccessToken != "" {
		args = append(args, update.AccessToken)
		sets = append(sets, fmt.Sprintf("access_token=$%d", len(args)))
	}
	if update.RefreshToken != "" {
		args = append(args, update.RefreshToken)
		sets = append(sets, fmt.Sprintf("refresh_token=$%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s, updated_at=NOW() WHERE id=$%d",
		strings.Join(sets, ", "), len(args))

	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *userRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&exists)
	return exists, err
}
