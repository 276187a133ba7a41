// Package security hashes and verifies Role passwords for the catalog
// manager. Roles authenticate by password, not by mTLS-issued node
// identity, so this package carries only bcrypt hashing (see DESIGN.md).
package security

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a Role's plaintext password at the library's
// default cost, for storage in Role.SaltedPasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches a hash previously
// produced by HashPassword.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
