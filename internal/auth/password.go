package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with bcrypt at the given cost.
func HashPassword(plaintext string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword does a constant-time comparison of a plaintext password
// against a bcrypt hash. Callers must treat "unknown email" and "wrong
// password" identically (spec.md §4.1): this function only ever returns a
// bool, never which check failed.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
