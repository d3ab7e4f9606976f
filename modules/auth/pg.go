package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apimeter/apimeter/pkg/pg"
)

// PGStorage is the Postgres-backed Storage.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage returns a Storage backed by the given pool.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// CreateUser implements Storage.
func (s *PGStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, organization_id)
		VALUES ($1, lower($2), $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		nilUUID(user.OrganizationID))
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password_hash, name, role, organization_id, created_at, updated_at`

// UserByEmail implements Storage.
func (s *PGStorage) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email))
}

// UserByID implements Storage.
func (s *PGStorage) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// AssignOrganization implements Storage.
func (s *PGStorage) AssignOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET organization_id = $2, role = $3, updated_at = now()
		WHERE id = $1`, userID, orgID, RoleOwner)
	if err != nil {
		return fmt.Errorf("assign organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UsersByOrganization implements Storage.
func (s *PGStorage) UsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query organization members: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// CreateAPIKey implements Storage.
func (s *PGStorage) CreateAPIKey(ctx context.Context, key APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (id, user_id, organization_id, name, value, hint, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.UserID, key.OrganizationID, key.Name, key.Value, key.Hint, key.Active)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

const apiKeyColumns = `id, user_id, organization_id, name, value, hint, active, last_used_at, created_at`

// APIKeyByValue implements Storage. The active filter lives in the query
// so revoked keys and unknown keys produce the same result.
func (s *PGStorage) APIKeyByValue(ctx context.Context, value string) (APIKey, error) {
	return scanAPIKey(s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE value = $1 AND active`, value))
}

// APIKeysByUser implements Storage.
func (s *PGStorage) APIKeysByUser(ctx context.Context, userID uuid.UUID) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// DeactivateAPIKey implements Storage.
func (s *PGStorage) DeactivateAPIKey(ctx context.Context, userID, keyID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET active = false
		WHERE id = $1 AND user_id = $2`, keyID, userID)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// TouchAPIKey implements Storage.
func (s *PGStorage) TouchAPIKey(ctx context.Context, keyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var orgID *uuid.UUID
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &orgID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if orgID != nil {
		user.OrganizationID = *orgID
	}
	return user, nil
}

func scanAPIKey(row pgx.Row) (APIKey, error) {
	var key APIKey
	err := row.Scan(&key.ID, &key.UserID, &key.OrganizationID, &key.Name,
		&key.Value, &key.Hint, &key.Active, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrAPIKeyNotFound
		}
		return APIKey{}, fmt.Errorf("scan api key: %w", err)
	}
	return key, nil
}

func nilUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
