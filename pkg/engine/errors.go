package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an archetype failure.
type ErrorKind string

const (
	// KindUnknownArchetype means the requested archetype could not be found
	// in any catalog, repository or path.
	KindUnknownArchetype ErrorKind = "unknown-archetype"

	// KindArchetypeNotDefined means no archetype was requested and none could
	// be asked for (batch mode).
	KindArchetypeNotDefined ErrorKind = "archetype-not-defined"

	// KindArchetypeNotConfigured means required properties are still missing
	// after every source was consulted.
	KindArchetypeNotConfigured ErrorKind = "archetype-not-configured"

	// KindProjectDirectoryExists means the target project directory is already present.
	KindProjectDirectoryExists ErrorKind = "project-directory-exists"

	// KindPomFileExists means a legacy archetype would overwrite an existing POM.
	KindPomFileExists ErrorKind = "pom-file-exists"

	// KindOutputFileExists means a generated file would overwrite an existing file.
	KindOutputFileExists ErrorKind = "output-file-exists"

	// KindInvalidPackaging means a parent POM cannot take modules.
	KindInvalidPackaging ErrorKind = "invalid-packaging"

	// KindInvalidDescriptor means the archetype descriptor is malformed.
	KindInvalidDescriptor ErrorKind = "invalid-descriptor"

	// KindGenerationFailure covers template and I/O failures during generation.
	KindGenerationFailure ErrorKind = "generation-failure"

	// KindCreationFailure covers failures while creating an archetype.
	KindCreationFailure ErrorKind = "creation-failure"

	// KindPolicyViolation means a generation request broke an enforced policy.
	KindPolicyViolation ErrorKind = "policy-violation"
)

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrUnknownArchetype       = &ArchetypeError{Kind: KindUnknownArchetype}
	ErrArchetypeNotDefined    = &ArchetypeError{Kind: KindArchetypeNotDefined}
	ErrArchetypeNotConfigured = &ArchetypeError{Kind: KindArchetypeNotConfigured}
	ErrProjectDirectoryExists = &ArchetypeError{Kind: KindProjectDirectoryExists}
	ErrPomFileExists          = &ArchetypeError{Kind: KindPomFileExists}
	ErrOutputFileExists       = &ArchetypeError{Kind: KindOutputFileExists}
	ErrInvalidPackaging       = &ArchetypeError{Kind: KindInvalidPackaging}
	ErrInvalidDescriptor      = &ArchetypeError{Kind: KindInvalidDescriptor}
	ErrGenerationFailure      = &ArchetypeError{Kind: KindGenerationFailure}
	ErrCreationFailure        = &ArchetypeError{Kind: KindCreationFailure}
	ErrPolicyViolation        = &ArchetypeError{Kind: KindPolicyViolation}
)

// ArchetypeError represents a classified error with context.
type ArchetypeError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Archetype is the archetype involved, if known.
	Archetype string `json:"archetype,omitempty"`

	// Path is the file or directory involved, if any.
	Path string `json:"path,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ArchetypeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Archetype != "" {
		msg = fmt.Sprintf("%s (archetype=%s)", msg, e.Archetype)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ArchetypeError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ArchetypeError) Is(target error) bool {
	t, ok := target.(*ArchetypeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new classified error.
func NewError(kind ErrorKind, message string, err error) *ArchetypeError {
	return &ArchetypeError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewUnknownArchetypeError reports an archetype that cannot be located.
func NewUnknownArchetypeError(coords Coordinates, err error) *ArchetypeError {
	return NewError(KindUnknownArchetype, "archetype not found", err).WithArchetype(coords.String())
}

// NewArchetypeNotDefinedError reports that no archetype was selected.
func NewArchetypeNotDefinedError() *ArchetypeError {
	return NewError(KindArchetypeNotDefined, "no archetype defined: set the archetype coordinates or run interactively", nil)
}

// NewArchetypeNotConfiguredError reports properties that could not be resolved.
func NewArchetypeNotConfiguredError(missing []string, err error) *ArchetypeError {
	e := NewError(KindArchetypeNotConfigured, "archetype is not configured", err)
	if len(missing) > 0 {
		e.Message = fmt.Sprintf("archetype is not configured, missing properties %v", missing)
		e.WithDetail("missing", missing)
	}
	return e
}

// NewProjectDirectoryExistsError reports an existing project directory.
func NewProjectDirectoryExistsError(dir string) *ArchetypeError {
	return NewError(KindProjectDirectoryExists, "project directory already exists", nil).WithPath(dir)
}

// NewPomFileExistsError reports an existing POM file.
func NewPomFileExistsError(path string) *ArchetypeError {
	return NewError(KindPomFileExists, "POM file already exists", nil).WithPath(path)
}

// NewOutputFileExistsError reports a generated file that already exists.
func NewOutputFileExistsError(path string) *ArchetypeError {
	return NewError(KindOutputFileExists, "output file already exists", nil).WithPath(path)
}

// WithArchetype adds archetype context to an error.
func (e *ArchetypeError) WithArchetype(id string) *ArchetypeError {
	e.Archetype = id
	return e
}

// WithPath adds path context to an error.
func (e *ArchetypeError) WithPath(path string) *ArchetypeError {
	e.Path = path
	return e
}

// WithDetail adds a detail field to the error context.
func (e *ArchetypeError) WithDetail(key string, value interface{}) *ArchetypeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first ArchetypeError in the chain, or "".
func KindOf(err error) ErrorKind {
	var e *ArchetypeError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsUnknownArchetype returns true if the archetype could not be located.
func IsUnknownArchetype(err error) bool {
	return KindOf(err) == KindUnknownArchetype
}

// IsArchetypeNotDefined returns true if no archetype was selected.
func IsArchetypeNotDefined(err error) bool {
	return KindOf(err) == KindArchetypeNotDefined
}

// IsArchetypeNotConfigured returns true if required properties are missing.
func IsArchetypeNotConfigured(err error) bool {
	return KindOf(err) == KindArchetypeNotConfigured
}

// IsExistingOutput returns true for the three "would overwrite" failures.
func IsExistingOutput(err error) bool {
	switch KindOf(err) {
	case KindProjectDirectoryExists, KindPomFileExists, KindOutputFileExists:
		return true
	}
	return false
}
