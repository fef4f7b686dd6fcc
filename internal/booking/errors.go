package booking

import (
	"errors"
	"fmt"

	"agenda-backend/internal/schedule"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicate             = errors.New("already exists")
	ErrServiceInactive       = errors.New("service inactive")
	ErrSlotNotOffered        = errors.New("slot not offered")
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidTransition     = errors.New("invalid status transition")
	// ErrStatusChanged is returned by repositories when a compare-and-set status update
	// finds a status other than the expected one.
	ErrStatusChanged = errors.New("status changed concurrently")
)

// ConfigError reports an invalid settings snapshot. It is never clamped or retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid settings: %s %s", e.Field, e.Reason)
}

// PersistenceError wraps a data store failure, including timeouts.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// persistence classifies a repository error: business and validation outcomes pass
// through untouched, everything else becomes a PersistenceError.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsPersistence(err) || IsConfig(err) {
		return err
	}
	for _, known := range []error{
		ErrNotFound,
		ErrDuplicate,
		ErrSlotNoLongerAvailable,
		ErrStatusChanged,
		schedule.ErrInvalidTimeFormat,
		schedule.ErrInvalidRange,
		schedule.ErrInvalidDate,
		schedule.ErrInvalidDuration,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
