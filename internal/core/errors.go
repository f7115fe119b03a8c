package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	ErrValidation         = errors.New("invalid input")
	ErrUnauthorized       = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Specific validation failures.
var (
	ErrInvalidAmount    = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: invalid quantity", ErrValidation)
	ErrInvalidOffset    = fmt.Errorf("%w: utc offset must be between -12 and +14", ErrValidation)
	ErrInvalidTimeOfDay = fmt.Errorf("%w: time of day must be HH:MM", ErrValidation)
	ErrInvalidLanguage  = fmt.Errorf("%w: unsupported language", ErrValidation)
	ErrInvalidDays      = fmt.Errorf("%w: days must be between 1 and 3650", ErrValidation)
	ErrEmptyActor       = fmt.Errorf("%w: empty actor name", ErrValidation)
	ErrReservedLabel    = fmt.Errorf("%w: label \"-\" is reserved for unlabelled entries", ErrValidation)
)

// Unavailable wraps a store failure so that it matches ErrStorageUnavailable
// while keeping the driver error in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorageUnavailable, err))
}

// Denied builds an authorization error naming the role that was required.
func Denied(have, need Role) error {
	return fmt.Errorf("%w: role %s, need %s", ErrUnauthorized, have, need)
}
