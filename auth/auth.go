// Package auth holds the token and password capabilities used by the services.
// Swapping the signing or hashing algorithm only touches this package.
package auth

import "errors"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// TokenManager issues and verifies session tokens bound to a user id
type TokenManager interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// PasswordHasher hashes passwords and checks candidates against stored hashes
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}
