package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm-auth-service/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, password_hash, phone, department, position, source, created_at, updated_at`

// GetByUsername returns the user for username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	ph := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	phone := sql.NullString{String: u.Phone, Valid: u.Phone != ""}
	dept := sql.NullString{String: u.Department, Valid: u.Department != ""}
	pos := sql.NullString{String: u.Position, Valid: u.Position != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, phone, department, position, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, ph, phone, dept, pos, string(u.Source), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdateAttributes replaces the user's department and position and bumps updated_at.
func (r *PostgresRepository) UpdateAttributes(ctx context.Context, id, department, position string) error {
	dept := sql.NullString{String: department, Valid: department != ""}
	pos := sql.NullString{String: position, Valid: position != ""}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET department = $2, position = $3, updated_at = $4 WHERE id = $1`,
		id, dept, pos, time.Now().UTC(),
	)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var ph, phone, dept, pos sql.NullString
	var source string
	err := row.Scan(&u.ID, &u.Username, &ph, &phone, &dept, &pos, &source, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.PasswordHash = ph.String
	u.Phone = phone.String
	u.Department = dept.String
	u.Position = pos.String
	u.Source = domain.Source(source)
	return &u, nil
}
