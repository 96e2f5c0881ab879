// Package logic implements famtree's native fact/rule store and its
// depth-first query evaluator.
//
// The store is built once at startup and read afterwards; it is not safe for
// concurrent assertion.
package logic

import (
	"famtree/internal/logging"
	"famtree/internal/types"
)

// clause is either a fact or a rule; exactly one field is set.
type clause struct {
	fact *types.Fact
	rule *types.Rule
}

type relation struct {
	name     string
	arity    int
	clauses  []clause
	factKeys map[string]struct{}
	facts    int
	rules    []types.Rule
}

// Store holds facts and rules grouped by relation, in assertion order.
type Store struct {
	relations map[string]*relation
	order     []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{relations: make(map[string]*relation)}
}

// relationFor returns the relation, creating it on first use.
// A known relation with another arity is a DuplicateDefinitionError.
func (s *Store) relationFor(name string, arity int) (*relation, error) {
	if rel, ok := s.relations[name]; ok {
		if rel.arity != arity {
			return nil, &types.DuplicateDefinitionError{Relation: name, Existing: rel.arity, Got: arity}
		}
		return rel, nil
	}
	rel := &relation{
		name:     name,
		arity:    arity,
		factKeys: make(map[string]struct{}),
	}
	s.relations[name] = rel
	s.order = append(s.order, name)
	return rel, nil
}

// AssertFact adds a ground fact. Asserting the same fact twice is a no-op.
func (s *Store) AssertFact(relationName string, args ...types.Atom) error {
	if err := types.ValidateRelation(relationName); err != nil {
		return err
	}
	for _, a := range args {
		if err := types.ValidateAtom(a); err != nil {
			return err
		}
	}
	rel, err := s.relationFor(relationName, len(args))
	if err != nil {
		return err
	}

	fact := types.Fact{Relation: relationName, Args: append([]types.Atom(nil), args...)}
	key := fact.Key()
	if _, dup := rel.factKeys[key]; dup {
		logging.KernelDebug("duplicate fact ignored: %s", fact)
		return nil
	}
	rel.factKeys[key] = struct{}{}
	rel.clauses = append(rel.clauses, clause{fact: &fact})
	rel.facts++
	logging.KernelDebug("asserted fact %s", fact)
	return nil
}

// AssertRule adds relation(params...) :- body.
func (s *Store) AssertRule(relationName string, params []types.Var, body ...types.Goal) error {
	rule := types.Rule{
		Relation: relationName,
		Params:   append([]types.Var(nil), params...),
		Body:     append([]types.Goal(nil), body...),
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rel, err := s.relationFor(relationName, len(params))
	if err != nil {
		return err
	}
	rel.clauses = append(rel.clauses, clause{rule: &rule})
	rel.rules = append(rel.rules, rule)
	logging.KernelDebug("asserted rule %s", rule)
	return nil
}

// Relations describes every known relation in first-assertion order.
func (s *Store) Relations() []types.RelationInfo {
	out := make([]types.RelationInfo, 0, len(s.order))
	for _, name := range s.order {
		rel := s.relations[name]
		out = append(out, types.RelationInfo{
			Name:  rel.name,
			Arity: rel.arity,
			Facts: rel.facts,
			Rules: append([]types.Rule(nil), rel.rules...),
		})
	}
	return out
}

// lookup returns the clauses of a relation when the arity matches.
func (s *Store) lookup(name string, arity int) ([]clause, bool) {
	rel, ok := s.relations[name]
	if !ok || rel.arity != arity {
		return nil, false
	}
	return rel.clauses, true
}
