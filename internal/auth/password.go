package auth

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"bureau.org/internal/domain"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 7

// ValidatePassword checks the password policy and reports every failed rule.
func ValidatePassword(password string) error {
	var letters, digits int
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	var v domain.Violations
	if len([]rune(password)) < MinPasswordLength {
		v.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if letters == 0 {
		v.Add("password", "must contain at least one letter")
	}
	if digits == 0 {
		v.Add("password", "must contain at least one digit")
	}
	return v.Err()
}

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
