package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is above the library default; login latency stays acceptable
// while keeping offline cracking expensive.
const bcryptCost = 12

// ErrInvalidCredentials indicates an email/password pair that does not
// match. Deliberately indistinguishable between unknown email and wrong
// password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
