package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrConflict means a business key (email, student id, teacher id,
	// institute code) or join pair already exists. The operation aborted
	// before any write.
	ErrConflict = errors.New("resource already exists")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput means the request shape is valid but the combination
	// of fields is not (wrong variant for role, missing institute, ...).
	ErrInvalidInput = errors.New("invalid input")
)

// TransactionError wraps a local-store failure. All local writes of the
// operation were rolled back; an external identity created before the
// transaction may remain and is recorded for the orphan sweep.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// asServiceError maps storage-level errors onto the service taxonomy.
// Unique-constraint violations become ErrConflict so concurrent writers
// racing past the pre-checks still get a definitive answer instead of a
// retryable failure.
func asServiceError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		// A desired id pointed at a row that does not exist.
		return fmt.Errorf("%w: referenced resource does not exist", ErrInvalidInput)
	}
	return err
}
