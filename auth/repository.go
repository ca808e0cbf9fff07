package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"crmapi/store"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = fmt.Errorf("auth: user %w", store.ErrNotFound)
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = fmt.Errorf("auth: %w: email already exists", store.ErrConflict)
)

// Repository handles data access for users.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID int64) (User, error)
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Name           string
	Email          string
	HashedPassword string
	Role           Role
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	db store.Querier
}

// NewRepository creates a PostgreSQL-backed user repository.
func NewRepository(db store.Querier) *PGRepository {
	return &PGRepository{db: db}
}

const userColumns = `id, name, email, hashed_password, role::text, created_at, last_login`

// CreateUser inserts a new user with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	insertSQL := `
		INSERT INTO users (name, email, hashed_password, role)
		VALUES ($1, $2, $3, $4::user_role)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, insertSQL, params.Name, params.Email, params.HashedPassword, string(params.Role)))
	if err != nil {
		if store.IsUniqueViolation(err, "users_email_key") {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("auth: create user: %w", store.Classify(err))
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID int64) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}

	return user, nil
}

// ListUsers returns users newest first.
func (r *PGRepository) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	var w store.Where
	if filter.Role != nil {
		w.And("role::text = " + w.Arg(string(*filter.Role)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := w.Arg(store.Contains(search))
		w.And("(name ILIKE " + p + " OR email ILIKE " + p + ")")
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users`+w.SQL()+` ORDER BY created_at DESC, id DESC`+filter.Page.SQL(), w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("auth: query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("auth: scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("auth: iterate users: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("auth: count users: %w", err)
	}

	return users, total, nil
}

// TouchLastLogin stamps the user's last successful login.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("auth: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.HashedPassword,
		&role,
		&user.CreatedAt,
		&user.LastLogin,
	)
	if err != nil {
		return User{}, err
	}

	user.Role = Role(role)
	return user, nil
}
