// Package shared provides helpers used by more than one storage backend.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// sqliteErrorContains reports whether err's message carries any of the markers.
// modernc.org/sqlite surfaces result codes only through the error text.
func sqliteErrorContains(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsSQLiteConflictError reports SQLITE_BUSY and "database is locked" errors,
// both of which are worth retrying.
func IsSQLiteConflictError(err error) bool {
	return sqliteErrorContains(err, "SQLITE_BUSY", "database is locked")
}

// IsSQLiteUniqueError reports a violated UNIQUE or PRIMARY KEY constraint.
func IsSQLiteUniqueError(err error) bool {
	return sqliteErrorContains(err, "UNIQUE constraint failed", "SQLITE_CONSTRAINT_PRIMARYKEY")
}
