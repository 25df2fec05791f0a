package domain

import (
	"strings"
	"time"
)

// User is a registered account held by the identity service.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidUsername reports whether a username is non-empty and free of path separators.
func ValidUsername(username string) bool {
	return strings.TrimSpace(username) != "" && !strings.ContainsAny(username, `/\`)
}
