package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/forumkit/forumkit/auth"
	"github.com/lib/pq"
)

// UserTableSchema is the reference DDL for the accounts table.
const UserTableSchema = `CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    email TEXT UNIQUE NOT NULL,
    fullname TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'USER',
    avatar TEXT NOT NULL DEFAULT ''
);`

const userColumns = `id, username, email, fullname, password, role, avatar`

// UserRepository persists auth.User records inside PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository wraps an existing *sql.DB connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user auth.User) (auth.User, error) {
	const query = `INSERT INTO users (username, email, fullname, password, role, avatar)
	               VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	role := user.Role
	if role == "" {
		role = auth.RoleUser
	}
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.Password, string(role), user.Avatar,
	).Scan(&user.ID)
	if err != nil {
		return auth.User{}, translateUserError(err)
	}
	user.Role = role
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (auth.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (auth.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, encoded string) error {
	const query = `UPDATE users SET password = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, encoded)
	if err != nil {
		return translateUserError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// UpdateAvatar stores a new avatar reference for the account.
func (r *UserRepository) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	const query = `UPDATE users SET avatar = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, avatar)
	if err != nil {
		return translateUserError(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (auth.User, error) {
	var (
		user auth.User
		role string
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password, &role, &user.Avatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, auth.ErrUserNotFound
		}
		return auth.User{}, translateUserError(err)
	}
	if parsed, ok := auth.ParseRole(role); ok {
		user.Role = parsed
	} else {
		// Unknown stored role degrades to the least privileged one.
		user.Role = auth.RoleUser
	}
	return user, nil
}

func translateUserError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "users_email_key" {
				return auth.ErrEmailTaken
			}
			return auth.ErrUsernameTaken
		case "22P02":
			return auth.ErrUserNotFound
		}
	}
	return err
}
