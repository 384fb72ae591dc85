package core

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them so
// callers can branch with errors.Is on the category alone.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage error")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrBalanceOutOfRange  = fmt.Errorf("%w: balance out of range", ErrInvalidAmount)
	ErrInvalidDate        = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidKind        = fmt.Errorf("%w: type must be charge or credit", ErrValidation)
	ErrInvalidMemberID    = fmt.Errorf("%w: invalid member id", ErrValidation)
	ErrDescriptionTooLong = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, MaxDescriptionLength)
	ErrNoValidMembers     = fmt.Errorf("%w: no valid members found in file", ErrValidation)
	ErrUnsupportedFile    = fmt.Errorf("%w: unsupported file type", ErrValidation)
	ErrPasswordMismatch   = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrPasswordRequired   = fmt.Errorf("%w: password is required", ErrValidation)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

	ErrMemberNotFound = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrNothingToUndo  = fmt.Errorf("%w: no transactions to undo", ErrNotFound)
)

// StorageFailure wraps a store error so it matches ErrStorage while keeping
// the underlying cause reachable.
func StorageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
