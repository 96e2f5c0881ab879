// Package family defines the demo family-relationship schema: the relation
// names, the seed parent facts, the derivation rules, and the set of valid
// subjects a session may ask about.
package family

import (
	"context"
	"fmt"

	"famtree/internal/types"
)

// Relation names of the demo schema.
const (
	Parent      = "parent"
	Grandparent = "grandparent"
	Uncle       = "uncle"
	Sibling     = "sibling"
	Children    = "children"
)

// ReportOrder is the fixed order in which a subject's relations are reported.
var ReportOrder = []string{Parent, Grandparent, Uncle, Sibling, Children}

var (
	x = types.V("X")
	y = types.V("Y")
	z = types.V("Z")
)

// SeedParents returns the built-in family tree: parent(Parent, Child).
func SeedParents() []types.Fact {
	pairs := [][2]string{
		{"john", "mary"},
		{"john", "paul"},
		{"mary", "susan"},
		{"mary", "james"},
		{"paul", "alice"},
	}
	facts := make([]types.Fact, len(pairs))
	for i, p := range pairs {
		facts[i] = types.Fact{
			Relation: Parent,
			Args:     []types.Atom{types.MustAtom(p[0]), types.MustAtom(p[1])},
		}
	}
	return facts
}

// Rules returns the derived relations in assertion order.
//
// uncle has no gender filter: the model carries no gender, so aunts match too.
func Rules() []types.Rule {
	xy := []types.Var{"X", "Y"}
	return []types.Rule{
		{Relation: Grandparent, Params: xy, Body: []types.Goal{
			types.G(Parent, x, z),
			types.G(Parent, z, y),
		}},
		{Relation: Uncle, Params: xy, Body: []types.Goal{
			types.G(Sibling, x, z),
			types.G(Parent, z, y),
		}},
		{Relation: Sibling, Params: xy, Body: []types.Goal{
			types.G(Parent, z, x),
			types.G(Parent, z, y),
			types.Neq(x, y),
		}},
		{Relation: Children, Params: xy, Body: []types.Goal{
			types.G(Parent, y, x),
		}},
	}
}

// Load asserts parent facts followed by the derivation rules.
// A nil parents slice loads SeedParents.
func Load(engine types.Engine, parents []types.Fact) error {
	if parents == nil {
		parents = SeedParents()
	}
	for _, f := range parents {
		if f.Relation != Parent {
			return fmt.Errorf("seed fact %s: only %s facts may be seeded", f, Parent)
		}
		if err := engine.AssertFact(f.Relation, f.Args...); err != nil {
			return fmt.Errorf("assert %s: %w", f, err)
		}
	}
	for _, r := range Rules() {
		if err := engine.AssertRule(r.Relation, r.Params, r.Body...); err != nil {
			return fmt.Errorf("assert rule %s: %w", r.Relation, err)
		}
	}
	return nil
}

// ValidSubjects returns everyone with at least one recorded parent,
// deduplicated in first-seen order.
func ValidSubjects(ctx context.Context, engine types.Engine) ([]types.Atom, error) {
	var out []types.Atom
	seen := make(map[types.Atom]bool)
	for b, err := range engine.Query(ctx, types.G(Parent, types.V("P"), x)) {
		if err != nil {
			return nil, &types.EngineFailure{Op: "valid subjects", Err: err}
		}
		child := b["X"]
		if !seen[child] {
			seen[child] = true
			out = append(out, child)
		}
	}
	return out, nil
}

// RelationGoal builds relation(X, subject), the query issued per report section.
func RelationGoal(relation string, subject types.Atom) types.Goal {
	return types.G(relation, x, types.A(subject))
}
