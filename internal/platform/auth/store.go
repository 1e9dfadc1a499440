package auth

import (
	"context"
	"database/sql"
	"errors"
)

type Account struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	CreatedAt    string
}

type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (*Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, a *Account) error
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) AccountStore {
	return &Store{db: db}
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*Account, error) {
	const q = `
SELECT username, email, password_hash, first_name, last_name, phone, created_at
FROM users
WHERE username = ?
LIMIT 1
`
	var a Account
	var phone sql.NullString
	err := s.db.QueryRowContext(ctx, q, username).Scan(
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&phone,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		a.Phone = &phone.String
	}
	return &a, nil
}

func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE email = ? LIMIT 1`, email,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO users (username, email, password_hash, first_name, last_name, phone, created_at)
VALUES (?, ?, ?, ?, ?, ?, NOW(6))
`
	var phone any
	if a.Phone != nil && *a.Phone != "" {
		phone = *a.Phone
	}
	_, err := s.db.ExecContext(ctx, q, a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName, phone)
	return err
}
