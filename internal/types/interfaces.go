package types

import (
	"context"
	"iter"
)

// Engine defines the interface for the logic core.
// Both the native evaluator and the Mangle-backed engine implement it.
type Engine interface {
	// AssertFact adds a ground fact. Duplicate facts are no-ops.
	AssertFact(relation string, args ...Atom) error
	// AssertRule adds a derivation rule relation(params...) :- body.
	AssertRule(relation string, params []Var, body ...Goal) error
	// Query lazily yields every binding of the goal's variables.
	Query(ctx context.Context, goal Goal) iter.Seq2[Binding, error]
}

// Describer is implemented by engines that can list their relations.
type Describer interface {
	Relations() []RelationInfo
}
