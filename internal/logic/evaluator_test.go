package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famtree/internal/family"
	"famtree/internal/types"
)

var (
	vX = types.V("X")
	vY = types.V("Y")
	vZ = types.V("Z")
)

func atom(s string) types.Term { return types.A(types.Atom(s)) }

func seededEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(DefaultConfig())
	require.NoError(t, family.Load(e, nil))
	return e
}

// column extracts one variable from each binding, keeping order and duplicates.
func column(bindings []types.Binding, v types.Var) []string {
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, string(b[v]))
	}
	return out
}

func query(t *testing.T, e *Engine, g types.Goal) []types.Binding {
	t.Helper()
	got, err := Collect(e.Query(context.Background(), g))
	require.NoError(t, err)
	return got
}

func TestParentAndChildrenMirror(t *testing.T) {
	e := seededEngine(t)
	for _, f := range family.SeedParents() {
		parent, child := f.Args[0], f.Args[1]

		parents := column(query(t, e, types.G(family.Parent, vX, types.A(child))), "X")
		assert.Equal(t, []string{string(parent)}, parents, "parent(X, %s)", child)

		kids := column(query(t, e, types.G(family.Children, vX, types.A(parent))), "X")
		assert.Contains(t, kids, string(child), "children(X, %s)", parent)
	}
}

func TestGrandparentTransitivity(t *testing.T) {
	e := seededEngine(t)
	for _, grandchild := range []string{"susan", "james", "alice"} {
		got := query(t, e, types.G(family.Grandparent, atom("john"), atom(grandchild)))
		assert.Len(t, got, 1, "grandparent(john, %s)", grandchild)
	}

	got := column(query(t, e, types.G(family.Grandparent, atom("john"), vY)), "Y")
	if diff := cmp.Diff([]string{"susan", "james", "alice"}, got); diff != "" {
		t.Errorf("grandparent(john, Y) mismatch (-want +got):\n%s", diff)
	}
}

func TestUncleDerivation(t *testing.T) {
	e := seededEngine(t)
	assert.Len(t, query(t, e, types.G(family.Uncle, atom("paul"), atom("susan"))), 1)
	assert.Len(t, query(t, e, types.G(family.Uncle, atom("paul"), atom("james"))), 1)

	// No gender attribute exists, so mary is alice's "uncle" too.
	all := query(t, e, types.G(family.Uncle, vX, vY))
	want := []types.Binding{
		{"X": "mary", "Y": "alice"},
		{"X": "paul", "Y": "susan"},
		{"X": "paul", "Y": "james"},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("uncle(X, Y) mismatch (-want +got):\n%s", diff)
	}
}

func TestSiblingExcludesSelf(t *testing.T) {
	e := seededEngine(t)
	assert.Empty(t, query(t, e, types.G(family.Sibling, vX, vX)))
	for _, name := range []string{"john", "mary", "paul", "susan", "james", "alice"} {
		assert.Empty(t, query(t, e, types.G(family.Sibling, atom(name), atom(name))), "sibling(%s, %s)", name, name)
	}

	pairs := query(t, e, types.G(family.Sibling, vX, vY))
	want := []types.Binding{
		{"X": "mary", "Y": "paul"},
		{"X": "paul", "Y": "mary"},
		{"X": "susan", "Y": "james"},
		{"X": "james", "Y": "susan"},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Errorf("sibling(X, Y) mismatch (-want +got):\n%s", diff)
	}
}

func TestSubjectReportQueries(t *testing.T) {
	e := seededEngine(t)
	tests := []struct {
		relation string
		want     []string
	}{
		{family.Parent, []string{"mary"}},
		{family.Grandparent, []string{"john"}},
		{family.Uncle, []string{"paul"}},
		{family.Sibling, []string{"james"}},
		{family.Children, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.relation, func(t *testing.T) {
			got := column(query(t, e, family.RelationGoal(tt.relation, "susan")), "X")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuplicateDerivationsArePreserved(t *testing.T) {
	e := seededEngine(t)
	// A second shared parent gives susan and james two derivation paths.
	require.NoError(t, e.AssertFact(family.Parent, "rose", "susan"))
	require.NoError(t, e.AssertFact(family.Parent, "rose", "james"))

	got := column(query(t, e, types.G(family.Sibling, vX, atom("susan"))), "X")
	assert.Equal(t, []string{"james", "james"}, got)
}

func TestQueryIsRepeatable(t *testing.T) {
	e := seededEngine(t)
	g := types.G(family.Uncle, vX, vY)
	first := query(t, e, g)
	second := query(t, e, g)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated query differs (-first +second):\n%s", diff)
	}
}

func TestAssertFactIdempotent(t *testing.T) {
	e := seededEngine(t)
	before := query(t, e, types.G(family.Children, vX, vY))

	require.NoError(t, e.AssertFact(family.Parent, "john", "mary"))

	after := query(t, e, types.G(family.Children, vX, vY))
	assert.Equal(t, len(before), len(after))
	for _, info := range e.Relations() {
		if info.Name == family.Parent {
			assert.Equal(t, 5, info.Facts)
		}
	}
}

func TestArityMismatchYieldsNothing(t *testing.T) {
	e := seededEngine(t)
	assert.Empty(t, query(t, e, types.G(family.Parent, vX)))
	assert.Empty(t, query(t, e, types.G(family.Parent, vX, vY, vZ)))
	assert.Empty(t, query(t, e, types.G("cousin", vX, vY)))
}

func TestDuplicateDefinition(t *testing.T) {
	e := seededEngine(t)

	err := e.AssertFact(family.Parent, "john")
	var dd *types.DuplicateDefinitionError
	require.ErrorAs(t, err, &dd)
	assert.Equal(t, 2, dd.Existing)
	assert.Equal(t, 1, dd.Got)

	err = e.AssertRule(family.Sibling, []types.Var{"X"}, types.G(family.Parent, vX, vY))
	assert.ErrorIs(t, err, types.ErrDuplicateDefinition)
}

func TestUnboundHeadVariable(t *testing.T) {
	e := NewEngine(DefaultConfig())
	err := e.AssertRule("broken", []types.Var{"X", "Y"}, types.G(family.Parent, vX, vZ))
	assert.ErrorIs(t, err, types.ErrUnboundHeadVariable)
	assert.Empty(t, e.Relations())
}

func TestInvalidFactAtom(t *testing.T) {
	e := NewEngine(DefaultConfig())
	err := e.AssertFact(family.Parent, "john", "Mary Ann")
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
}

func TestRecursiveRuleTerminates(t *testing.T) {
	e := seededEngine(t)
	require.NoError(t, e.AssertRule("ancestor", []types.Var{"X", "Y"}, types.G(family.Parent, vX, vY)))
	require.NoError(t, e.AssertRule("ancestor", []types.Var{"X", "Y"},
		types.G(family.Parent, vX, vZ),
		types.G("ancestor", vZ, vY),
	))

	got := column(query(t, e, types.G("ancestor", atom("john"), vY)), "Y")
	assert.Equal(t, []string{"mary", "paul", "susan", "james", "alice"}, got)
}

func TestLeftRecursionHitsLimit(t *testing.T) {
	e := NewEngine(Config{MaxDepth: 8})
	require.NoError(t, family.Load(e, nil))
	require.NoError(t, e.AssertRule("loop", []types.Var{"X", "Y"},
		types.G("loop", vX, vZ),
		types.G(family.Parent, vZ, vY),
	))

	_, err := Collect(e.Query(context.Background(), types.G("loop", vX, vY)))
	var rl *types.RecursionLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "loop", rl.Relation)
	assert.Equal(t, 8, rl.Depth)
	assert.ErrorIs(t, err, types.ErrRecursionLimitExceeded)
}

func TestQueryStopsEarly(t *testing.T) {
	e := seededEngine(t)
	n := 0
	for b, err := range e.Query(context.Background(), types.G(family.Parent, vX, vY)) {
		require.NoError(t, err)
		require.NotEmpty(t, b["X"])
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestQueryHonoursCancellation(t *testing.T) {
	e := seededEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(e.Query(ctx, types.G(family.Uncle, vX, vY)))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestBindingsOnlyCarryQueryVariables(t *testing.T) {
	e := seededEngine(t)
	got := query(t, e, types.G(family.Grandparent, vX, atom("alice")))
	require.Len(t, got, 1)
	assert.Equal(t, types.Binding{"X": "john"}, got[0])

	// Fully bound goals yield one empty binding per proof.
	ground := query(t, e, types.G(family.Parent, atom("john"), atom("mary")))
	require.Len(t, ground, 1)
	assert.Empty(t, ground[0])
}

func TestRelationsDescribeSchema(t *testing.T) {
	e := seededEngine(t)
	infos := e.Relations()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
		assert.Equal(t, 2, info.Arity)
	}
	assert.Equal(t, []string{family.Parent, family.Grandparent, family.Uncle, family.Sibling, family.Children}, names)
	assert.Len(t, infos[3].Rules, 1)
	assert.Equal(t, "sibling(X, Y) :- parent(Z, X), parent(Z, Y), X != Y.", infos[3].Rules[0].String())
}
