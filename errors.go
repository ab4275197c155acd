package digo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCircularDependency is wrapped by a DependencyResolutionError when the
	// same service/registration pair recurs inside a single resolve operation.
	ErrCircularDependency = errors.New("circular component dependency detected")

	// ErrMaxResolveDepth is wrapped when a resolve operation nests deeper than
	// the configured limit.
	ErrMaxResolveDepth = errors.New("maximum resolve depth exceeded")

	// ErrNoMatchingScope is wrapped when no ancestor scope carries the tag a
	// matching-scope lifetime asks for.
	ErrNoMatchingScope = errors.New("no matching lifetime scope")

	// ErrScopeDisposed is wrapped when a disposed scope is asked to resolve or
	// begin a child scope.
	ErrScopeDisposed = errors.New("lifetime scope is disposed")

	// ErrAlreadyBuilt is wrapped by ArgumentError when a builder is reused.
	ErrAlreadyBuilt = errors.New("builder has already been built")
)

// ComponentNotRegisteredError represents a service that no registration and no
// registration source can provide.
type ComponentNotRegisteredError struct {
	Service Service
}

func (e *ComponentNotRegisteredError) Error() string {
	return fmt.Sprintf("the requested service '%s' has not been registered", describe(e.Service))
}

// DependencyResolutionError is the single error family resolve operations
// surface. Err carries either one of the sentinels above or the error an
// activator or handler returned.
type DependencyResolutionError struct {
	Service Service
	Message string
	Err     error
}

func (e *DependencyResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Service != nil {
		b.WriteString(" (service: ")
		b.WriteString(describe(e.Service))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DependencyResolutionError) Unwrap() error {
	return e.Err
}

// ArgumentError represents build-time misuse of the registration surface.
type ArgumentError struct {
	Param   string
	Message string
	Err     error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid argument %s: %s: %v", e.Param, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Message)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// TypeMismatchError represents a resolved instance that cannot be asserted to
// the type the caller asked for.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// DisposalError represents a failure while releasing one owned instance.
type DisposalError struct {
	Type string
	Err  error
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("dispose failed for type %s: %v", e.Type, e.Err)
}

func (e *DisposalError) Unwrap() error {
	return e.Err
}

// IsResolutionError reports whether err belongs to the resolve error family.
func IsResolutionError(err error) bool {
	var dre *DependencyResolutionError
	return errors.As(err, &dre)
}

// IsNotRegistered reports whether err signals a missing registration.
func IsNotRegistered(err error) bool {
	var nre *ComponentNotRegisteredError
	return errors.As(err, &nre)
}

func describe(s Service) string {
	if s == nil {
		return "<nil>"
	}
	return s.Description()
}
