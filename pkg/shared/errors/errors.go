package errors

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed field on a constructed value.
// It is fatal to the single item, never to the caller's batch-level loop.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q %s", e.Entity, e.Field, e.Reason)
}

// NewValidationError creates a new ValidationError instance.
func NewValidationError(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

// InvalidArgumentError reports an invalid call-site argument, such as a
// non-positive batch size or generation length. Never silently clamped.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

// Error implements the error interface for InvalidArgumentError.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Reason)
}

// NewInvalidArgumentError creates a new InvalidArgumentError instance.
func NewInvalidArgumentError(argument, reason string) error {
	return &InvalidArgumentError{Argument: argument, Reason: reason}
}

// UnknownDatasetError reports a lookup of an unregistered dataset name,
// carrying the list of currently registered names to aid recovery.
type UnknownDatasetError struct {
	Name      string
	Available []string
}

// Error implements the error interface for UnknownDatasetError.
func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q, available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

// NewUnknownDatasetError creates a new UnknownDatasetError instance.
func NewUnknownDatasetError(name string, available []string) error {
	return &UnknownDatasetError{Name: name, Available: available}
}

// UnknownModelError reports a lookup of an unregistered model name.
type UnknownModelError struct {
	Name      string
	Available []string
}

// Error implements the error interface for UnknownModelError.
func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q, available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

// NewUnknownModelError creates a new UnknownModelError instance.
func NewUnknownModelError(name string, available []string) error {
	return &UnknownModelError{Name: name, Available: available}
}

// RegistrationConflictError reports two components registering the same name.
// This is a configuration error and must fail fast rather than overwrite.
type RegistrationConflictError struct {
	Kind string
	Name string
}

// Error implements the error interface for RegistrationConflictError.
func (e *RegistrationConflictError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}

// NewRegistrationConflictError creates a new RegistrationConflictError instance.
func NewRegistrationConflictError(kind, name string) error {
	return &RegistrationConflictError{Kind: kind, Name: name}
}

// CheckpointShapeMismatchError reports a prefix checkpoint whose stored
// dimensions disagree with the expectations of the loading module.
type CheckpointShapeMismatchError struct {
	Path                  string
	WantLength, GotLength int
	WantHidden, GotHidden int
}

// Error implements the error interface for CheckpointShapeMismatchError.
func (e *CheckpointShapeMismatchError) Error() string {
	return fmt.Sprintf("checkpoint %q shape mismatch: want [%d, %d], got [%d, %d]",
		e.Path, e.WantLength, e.WantHidden, e.GotLength, e.GotHidden)
}

// NewCheckpointShapeMismatchError creates a new CheckpointShapeMismatchError instance.
func NewCheckpointShapeMismatchError(path string, wantLength, wantHidden, gotLength, gotHidden int) error {
	return &CheckpointShapeMismatchError{
		Path:       path,
		WantLength: wantLength,
		GotLength:  gotLength,
		WantHidden: wantHidden,
		GotHidden:  gotHidden,
	}
}

// EmptyInputError reports an aggregate operation over an empty input
// sequence for which the result is undefined, not zero.
type EmptyInputError struct {
	Operation string
}

// Error implements the error interface for EmptyInputError.
func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s is undefined for an empty input", e.Operation)
}

// NewEmptyInputError creates a new EmptyInputError instance.
func NewEmptyInputError(operation string) error {
	return &EmptyInputError{Operation: operation}
}

// InsufficientSamplesError reports a pass@k request where k exceeds the
// number of candidate samples available per problem.
type InsufficientSamplesError struct {
	K       int
	Samples int
}

// Error implements the error interface for InsufficientSamplesError.
func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("pass@%d requires at least %d samples per problem, got %d", e.K, e.K, e.Samples)
}

// NewInsufficientSamplesError creates a new InsufficientSamplesError instance.
func NewInsufficientSamplesError(k, samples int) error {
	return &InsufficientSamplesError{K: k, Samples: samples}
}

// BackboneUnavailableError signals that the generation service cannot be
// reached. Contracts with a placeholder path absorb it locally.
type BackboneUnavailableError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface for BackboneUnavailableError.
func (e *BackboneUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backbone service %q is unavailable: %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("backbone service %q is unavailable", e.Endpoint)
}

// Unwrap exposes the underlying transport error.
func (e *BackboneUnavailableError) Unwrap() error {
	return e.Cause
}

// NewBackboneUnavailableError creates a new BackboneUnavailableError instance.
func NewBackboneUnavailableError(endpoint string, cause error) error {
	return &BackboneUnavailableError{Endpoint: endpoint, Cause: cause}
}
