package utils

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit. Longer passwords are digested
// first so every byte still counts.
const MaxPasswordBytes = 72

func bcryptInput(password string) []byte {
	if len(password) <= MaxPasswordBytes {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(bcryptInput(password), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
}

// PasswordMatches is CheckPassword reduced to a boolean; malformed hashes never match.
func PasswordMatches(hash, password string) bool {
	return CheckPassword(hash, password) == nil
}
