package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-SHA256 parameters. Changing these invalidates stored hashes, so
// they are fixed.
const (
	saltLen    = 32
	keyLen     = 32
	iterations = 100000
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword derives a storable hash from a plaintext password: a random
// 32-byte salt concatenated with the PBKDF2 key, base64-encoded.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(append(salt, key...)), nil
}

// VerifyPassword checks a plaintext password against a stored hash in
// constant time.
func VerifyPassword(stored, password string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false, errMalformedHash
	}
	if len(raw) != saltLen+keyLen {
		return false, errMalformedHash
	}
	salt, storedKey := raw[:saltLen], raw[saltLen:]
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha256.New)
	return subtle.ConstantTimeCompare(key, storedKey) == 1, nil
}
