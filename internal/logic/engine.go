package logic

import (
	"context"
	"iter"

	"famtree/internal/types"
)

// Config holds native engine configuration.
type Config struct {
	MaxDepth int `json:"max_depth"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth}
}

// Engine is the in-process implementation of types.Engine.
type Engine struct {
	store *Store
	eval  *Evaluator
}

var _ types.Engine = (*Engine)(nil)

// NewEngine creates an empty native engine.
func NewEngine(cfg Config) *Engine {
	store := NewStore()
	return &Engine{store: store, eval: NewEvaluator(store, cfg.MaxDepth)}
}

// AssertFact adds a ground fact.
func (e *Engine) AssertFact(relation string, args ...types.Atom) error {
	return e.store.AssertFact(relation, args...)
}

// AssertRule adds a derivation rule.
func (e *Engine) AssertRule(relation string, params []types.Var, body ...types.Goal) error {
	return e.store.AssertRule(relation, params, body...)
}

// Query evaluates goal lazily.
func (e *Engine) Query(ctx context.Context, goal types.Goal) iter.Seq2[types.Binding, error] {
	return e.eval.Query(ctx, goal)
}

// Relations describes the loaded schema.
func (e *Engine) Relations() []types.RelationInfo {
	return e.store.Relations()
}

// Collect drains a query into a slice, stopping at the first error.
func Collect(seq iter.Seq2[types.Binding, error]) ([]types.Binding, error) {
	var out []types.Binding
	for b, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}
