package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. The concrete error types below unwrap to them.
var (
	ErrInvalidSubject         = errors.New("invalid subject")
	ErrDuplicateDefinition    = errors.New("duplicate definition")
	ErrUnboundHeadVariable    = errors.New("unbound head variable")
	ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")
	ErrEngineFailure          = errors.New("engine failure")
	ErrInvalidIdentifier      = errors.New("invalid identifier")
)

// InvalidSubjectError is returned when a name is not among the valid subjects.
type InvalidSubjectError struct {
	Input string
	Valid []Atom
}

func (e *InvalidSubjectError) Error() string {
	names := make([]string, len(e.Valid))
	for i, a := range e.Valid {
		names[i] = string(a)
	}
	return fmt.Sprintf("%q does not exist in the family tree (valid: %s)", e.Input, strings.Join(names, ", "))
}

func (e *InvalidSubjectError) Unwrap() error { return ErrInvalidSubject }

// DuplicateDefinitionError reports a relation redefined with a different arity.
type DuplicateDefinitionError struct {
	Relation string
	Existing int
	Got      int
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("relation %s already defined with arity %d, got %d", e.Relation, e.Existing, e.Got)
}

func (e *DuplicateDefinitionError) Unwrap() error { return ErrDuplicateDefinition }

// UnboundHeadVariableError reports a rule head variable missing from the body.
type UnboundHeadVariableError struct {
	Relation string
	Var      Var
}

func (e *UnboundHeadVariableError) Error() string {
	return fmt.Sprintf("rule %s: head variable %s does not occur in a body goal", e.Relation, e.Var)
}

func (e *UnboundHeadVariableError) Unwrap() error { return ErrUnboundHeadVariable }

// RecursionLimitError is raised when evaluation nests deeper than the configured limit.
type RecursionLimitError struct {
	Relation string
	Depth    int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d exceeded while evaluating %s", e.Depth, e.Relation)
}

func (e *RecursionLimitError) Unwrap() error { return ErrRecursionLimitExceeded }

// EngineFailure wraps any failure raised by an inference engine.
type EngineFailure struct {
	Op  string
	Err error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("engine failure during %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *EngineFailure) Unwrap() []error { return []error{ErrEngineFailure, e.Err} }

// InvalidIdentifierError reports a malformed atom, variable or relation name.
type InvalidIdentifierError struct {
	Kind  string
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Kind, e.Value)
}

func (e *InvalidIdentifierError) Unwrap() error { return ErrInvalidIdentifier }
