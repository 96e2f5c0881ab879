package logic

import (
	"context"
	"errors"
	"iter"

	"famtree/internal/types"
)

// DefaultMaxDepth bounds rule expansion so self-referential rules fail instead of hanging.
const DefaultMaxDepth = 64

// errStop unwinds the search when the consumer stops iterating.
var errStop = errors.New("stop")

// Evaluator answers goals against a Store by depth-first, left-to-right search.
type Evaluator struct {
	store    *Store
	maxDepth int
}

// NewEvaluator creates an evaluator over store. maxDepth <= 0 selects DefaultMaxDepth.
func NewEvaluator(store *Store, maxDepth int) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Evaluator{store: store, maxDepth: maxDepth}
}

// Query lazily yields one binding of the goal's variables per solution.
// Solutions follow clause assertion order; duplicates from distinct
// derivations are kept. Evaluation errors are yielded once, last.
func (ev *Evaluator) Query(ctx context.Context, goal types.Goal) iter.Seq2[types.Binding, error] {
	return func(yield func(types.Binding, error) bool) {
		vars := goal.Vars()
		err := ev.solve(ctx, goal, types.Binding{}, 0, func(env types.Binding) bool {
			return yield(env.Project(vars), nil)
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(nil, err)
		}
	}
}

// solve calls k for every extension of env satisfying goal.
// k returning false aborts the search with errStop.
func (ev *Evaluator) solve(ctx context.Context, goal types.Goal, env types.Binding, depth int, k func(types.Binding) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if goal.IsBuiltin() {
		return ev.solveNotEqual(goal, env, k)
	}

	clauses, ok := ev.store.lookup(goal.Relation, len(goal.Args))
	if !ok {
		// Unknown relation or arity mismatch: no solutions.
		return nil
	}

	for _, c := range clauses {
		if c.fact != nil {
			next, ok := unifyFact(env, goal.Args, c.fact.Args)
			if ok && !k(next) {
				return errStop
			}
			continue
		}

		if depth >= ev.maxDepth {
			return &types.RecursionLimitError{Relation: goal.Relation, Depth: ev.maxDepth}
		}
		callEnv, links, ok := bindParams(env, goal.Args, c.rule.Params)
		if !ok {
			continue
		}
		err := ev.solveAll(ctx, c.rule.Body, callEnv, depth+1, func(ruleEnv types.Binding) bool {
			out, ok := propagate(env, links, ruleEnv)
			if !ok {
				return true
			}
			return k(out)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// solveAll evaluates a conjunction, threading bindings left to right.
func (ev *Evaluator) solveAll(ctx context.Context, goals []types.Goal, env types.Binding, depth int, k func(types.Binding) bool) error {
	if len(goals) == 0 {
		if !k(env) {
			return errStop
		}
		return nil
	}

	var inner error
	err := ev.solve(ctx, goals[0], env, depth, func(next types.Binding) bool {
		if err := ev.solveAll(ctx, goals[1:], next, depth, k); err != nil {
			inner = err
			return false
		}
		return true
	})
	if inner != nil {
		return inner
	}
	return err
}

// solveNotEqual succeeds only when both sides are bound to different atoms.
func (ev *Evaluator) solveNotEqual(goal types.Goal, env types.Binding, k func(types.Binding) bool) error {
	if len(goal.Args) != 2 {
		return nil
	}
	left, lok := env.Resolve(goal.Args[0])
	right, rok := env.Resolve(goal.Args[1])
	if !lok || !rok || left == right {
		return nil
	}
	if !k(env) {
		return errStop
	}
	return nil
}

// unifyFact matches goal arguments against a ground tuple.
func unifyFact(env types.Binding, args []types.Term, tuple []types.Atom) (types.Binding, bool) {
	out := env.Clone()
	for i, arg := range args {
		if bound, ok := out.Resolve(arg); ok {
			if bound != tuple[i] {
				return nil, false
			}
			continue
		}
		out[arg.Var()] = tuple[i]
	}
	return out, true
}

// link ties a rule parameter to the caller variable it must flow back into.
type link struct {
	param  types.Var
	caller types.Var
}

// bindParams builds the rule-local environment for one invocation.
func bindParams(env types.Binding, args []types.Term, params []types.Var) (types.Binding, []link, bool) {
	callEnv := make(types.Binding, len(params))
	var links []link
	for i, p := range params {
		if a, ok := env.Resolve(args[i]); ok {
			if existing, seen := callEnv[p]; seen && existing != a {
				return nil, nil, false
			}
			callEnv[p] = a
			continue
		}
		links = append(links, link{param: p, caller: args[i].Var()})
	}
	return callEnv, links, true
}

// propagate copies a rule solution back into the caller's environment.
func propagate(env types.Binding, links []link, ruleEnv types.Binding) (types.Binding, bool) {
	out := env.Clone()
	for _, l := range links {
		val, ok := ruleEnv[l.param]
		if !ok {
			continue
		}
		if cur, seen := out[l.caller]; seen {
			if cur != val {
				return nil, false
			}
			continue
		}
		out[l.caller] = val
	}
	return out, true
}
