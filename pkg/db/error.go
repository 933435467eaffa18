package db

import "strings"

// IsSerializationErr reports lock or serialization contention so callers can
// surface it as a concurrency conflict instead of a generic failure.
func IsSerializationErr(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// PostgreSQL (40001 serialization_failure, 55P03 lock_not_available)
	if strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "could not obtain lock") {
		return true
	}

	// MySQL (1213 deadlock, 1205 lock wait timeout)
	if strings.Contains(msg, "Error 1213") || strings.Contains(msg, "Error 1205") {
		return true
	}

	// SQLite (5 SQLITE_BUSY)
	if strings.Contains(msg, "database is locked") {
		return true
	}

	return false
}
