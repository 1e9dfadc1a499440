package auth

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// 秘密鍵は環境変数優先（未設定時は開発用デフォルト）
const jwtSecretEnv = "FT_JWT_SECRET"

var jwtSecret = []byte("dev-only-secret")

func JWTSecret() []byte {
	if v := os.Getenv(jwtSecretEnv); v != "" {
		return []byte(v)
	}
	return jwtSecret
}

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
)

type SignupInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) error
	Signin(ctx context.Context, username, password string) (string, error)
}

type Service struct {
	store AccountStore
}

func NewService(db *sql.DB) *Service {
	return &Service{store: NewStore(db)}
}

func (s *Service) Signin(ctx context.Context, username, password string) (string, error) {
	acct, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", errors.New("authentication failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("authentication failed")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": acct.Username,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(JWTSecret())
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) error {
	// username / email どちらも一意
	exists, err := s.store.GetByUsername(ctx, in.Username)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}
	taken, err := s.store.EmailExists(ctx, in.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.store.Create(ctx, &Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
	})
}
