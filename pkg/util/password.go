package util

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12
	// bcrypt은 72바이트 이후를 무시함
	maxPasswordBytes = 72
	guestSecretBytes = 24
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword hashes a plain text password
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// GuestPasswordHash 비회원 계정용 해시 (아무도 모르는 임의 비밀번호)
func GuestPasswordHash() (string, error) {
	secret, err := RandomToken(guestSecretBytes)
	if err != nil {
		return "", err
	}
	return HashPassword(secret)
}

// VerifyPassword checks if a plain text password matches a hashed password
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
