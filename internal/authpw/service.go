// Package authpw verifies the administrator's username and password against a
// stored bcrypt hash.
package authpw

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DevPassword is the password used when no hash is configured.
const DevPassword = "password123"

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service checks login attempts for the single admin account
type Service struct {
	username     string
	passwordHash []byte
}

// NewService validates the stored hash up front so a bad configuration fails at startup
func NewService(username, passwordHash string) (*Service, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}
	return &Service{
		username:     username,
		passwordHash: []byte(passwordHash),
	}, nil
}

// NewDevService hashes DevPassword once for local development
func NewDevService(username string) (*Service, error) {
	hash, err := HashPassword(DevPassword, bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return NewService(username, hash)
}

// Verify authenticates a login attempt
func (s *Service) Verify(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Compare the password even when the username is wrong so both paths cost the same
	passwordErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !usernameOK || passwordErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword produces a hash suitable for VITRINE_ADMIN_PASSWORD_HASH
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
