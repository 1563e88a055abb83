package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost matches the salt rounds existing accounts were hashed with
const DefaultBcryptCost = 10

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost. Out of range costs fall back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare reports whether password matches hash
func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
