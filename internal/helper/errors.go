package helper

import (
	"errors"
	"fmt"
)

// RegistryErrorCode categorizes registry errors.
type RegistryErrorCode string

const (
	// ErrCodeDuplicateName indicates a helper name was registered twice.
	ErrCodeDuplicateName RegistryErrorCode = "DUPLICATE_NAME"

	// ErrCodeUnknownHelper indicates a lookup for an unregistered name.
	ErrCodeUnknownHelper RegistryErrorCode = "UNKNOWN_HELPER"

	// ErrCodeRegistryFrozen indicates registration after the registry froze.
	ErrCodeRegistryFrozen RegistryErrorCode = "REGISTRY_FROZEN"

	// ErrCodeInvalidHandler indicates a handler with an unsupported signature.
	ErrCodeInvalidHandler RegistryErrorCode = "INVALID_HANDLER"
)

// RegistryError represents a helper registration or lookup failure.
//
// Registry errors are fatal to setup: they surface immediately, before any
// queued work runs, so a misconfigured suite fails fast.
type RegistryError struct {
	// Code identifies the error category.
	Code RegistryErrorCode

	// Name is the helper name involved.
	Name string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (helper=%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDuplicateName returns true if the error is a duplicate registration error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateName(err error) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicateName
	}
	return false
}

// IsUnknownHelper returns true if the error is an unknown-helper lookup error.
func IsUnknownHelper(err error) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownHelper
	}
	return false
}

// IsRegistryFrozen returns true if the error is a late-registration error.
func IsRegistryFrozen(err error) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRegistryFrozen
	}
	return false
}

// NewDuplicateNameError creates a RegistryError for a duplicate registration.
func NewDuplicateNameError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeDuplicateName,
		Name:    name,
		Message: "helper name already registered",
	}
}

// NewUnknownHelperError creates a RegistryError for an unregistered name.
func NewUnknownHelperError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeUnknownHelper,
		Name:    name,
		Message: "helper not registered",
	}
}

// NewRegistryFrozenError creates a RegistryError for late registration.
func NewRegistryFrozenError(name string) *RegistryError {
	return &RegistryError{
		Code:    ErrCodeRegistryFrozen,
		Name:    name,
		Message: "registry is frozen; helpers must be registered before the session starts",
	}
}
