package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	ErrDuplicateVersion     = errors.New("duplicate migration version")
	// ErrChecksumMismatch reports an applied migration whose file changed afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError ties a failure to the migration file that caused it.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}

func (e *MigrationError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration %s: %s: %v", e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// DatabaseError wraps a driver failure while touching schema_migrations or
// running a statement. Query is kept for debugging and never printed.
type DatabaseError struct {
	Version   string
	Query     string
	Operation string
	Err       error
}

func NewDatabaseError(version, query, operation string, err error) *DatabaseError {
	return &DatabaseError{Version: version, Query: query, Operation: operation, Err: err}
}

func (e *DatabaseError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration database error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s database error during %s: %v", e.Version, e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }
