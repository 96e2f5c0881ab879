package types

import (
	"errors"
	"testing"
)

func TestNewAtom(t *testing.T) {
	tests := []struct {
		in      string
		want    Atom
		wantErr bool
	}{
		{in: "susan", want: "susan"},
		{in: "  Susan ", want: "susan"},
		{in: "MARY_2", want: "mary_2"},
		{in: "", wantErr: true},
		{in: "2pac", wantErr: true},
		{in: "o'brien", wantErr: true},
		{in: "two words", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NewAtom(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("NewAtom(%q) error = %v, want ErrInvalidIdentifier", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewAtom(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NewAtom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewVar(t *testing.T) {
	if _, err := NewVar("X"); err != nil {
		t.Fatalf("expected X to be a valid variable: %v", err)
	}
	if _, err := NewVar("Child_1"); err != nil {
		t.Fatalf("expected Child_1 to be a valid variable: %v", err)
	}
	if _, err := NewVar("x"); err == nil {
		t.Fatalf("expected lowercase variable to be rejected")
	}
	if _, err := NewVar(""); err == nil {
		t.Fatalf("expected empty variable to be rejected")
	}
}

func TestParseTerm(t *testing.T) {
	term, err := ParseTerm("X")
	if err != nil || !term.IsVar() || term.Var() != "X" {
		t.Fatalf("ParseTerm(X) = %v, %v; want variable X", term, err)
	}
	term, err = ParseTerm("john")
	if err != nil || term.IsVar() || term.Atom() != "john" {
		t.Fatalf("ParseTerm(john) = %v, %v; want atom john", term, err)
	}
	if _, err := ParseTerm("john doe"); err == nil {
		t.Fatalf("expected error for atom with whitespace")
	}
}

func TestGoalString(t *testing.T) {
	g := G("grandparent", V("X"), A("susan"))
	if got := g.String(); got != "grandparent(X, susan)" {
		t.Fatalf("unexpected goal string: %s", got)
	}
	n := Neq(V("X"), V("Y"))
	if got := n.String(); got != "X != Y" {
		t.Fatalf("unexpected inequality string: %s", got)
	}
}

func TestGoalVarsDistinct(t *testing.T) {
	g := G("r", V("X"), A("a"), V("Y"), V("X"))
	vars := g.Vars()
	if len(vars) != 2 || vars[0] != "X" || vars[1] != "Y" {
		t.Fatalf("Vars() = %v, want [X Y]", vars)
	}
}

func TestRuleValidate(t *testing.T) {
	ok := Rule{
		Relation: "sibling",
		Params:   []Var{"X", "Y"},
		Body: []Goal{
			G("parent", V("Z"), V("X")),
			G("parent", V("Z"), V("Y")),
			Neq(V("X"), V("Y")),
		},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	unbound := Rule{
		Relation: "orphan",
		Params:   []Var{"X", "Y"},
		Body:     []Goal{G("parent", V("X"), V("Z"))},
	}
	err := unbound.Validate()
	var ue *UnboundHeadVariableError
	if !errors.As(err, &ue) || ue.Var != "Y" {
		t.Fatalf("expected UnboundHeadVariableError for Y, got %v", err)
	}

	// A variable only mentioned by the inequality is still unbound.
	neqOnly := Rule{
		Relation: "odd",
		Params:   []Var{"X", "Y"},
		Body:     []Goal{G("parent", V("X"), V("Z")), Neq(V("Y"), V("Z"))},
	}
	if err := neqOnly.Validate(); !errors.Is(err, ErrUnboundHeadVariable) {
		t.Fatalf("expected ErrUnboundHeadVariable, got %v", err)
	}

	badAtom := Rule{
		Relation: "r",
		Params:   []Var{"X"},
		Body:     []Goal{G("parent", V("X"), A("Not Valid"))},
	}
	if err := badAtom.Validate(); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestRuleString(t *testing.T) {
	r := Rule{
		Relation: "grandparent",
		Params:   []Var{"X", "Y"},
		Body:     []Goal{G("parent", V("X"), V("Z")), G("parent", V("Z"), V("Y"))},
	}
	want := "grandparent(X, Y) :- parent(X, Z), parent(Z, Y)."
	if got := r.String(); got != want {
		t.Fatalf("unexpected rule string:\nwant: %s\ngot:  %s", want, got)
	}
}

func TestFactKeyDistinguishesArgs(t *testing.T) {
	a := Fact{Relation: "parent", Args: []Atom{"ab", "c"}}
	b := Fact{Relation: "parent", Args: []Atom{"a", "bc"}}
	if a.Key() == b.Key() {
		t.Fatalf("expected different keys for %v and %v", a, b)
	}
	if got := a.String(); got != "parent(ab, c)." {
		t.Fatalf("unexpected fact string: %s", got)
	}
}

func TestBindingResolveAndProject(t *testing.T) {
	b := Binding{"X": "john", "Z": "mary"}
	if a, ok := b.Resolve(V("X")); !ok || a != "john" {
		t.Fatalf("Resolve(X) = %q, %v", a, ok)
	}
	if _, ok := b.Resolve(V("Y")); ok {
		t.Fatalf("expected Y to be unbound")
	}
	if a, ok := b.Resolve(A("paul")); !ok || a != "paul" {
		t.Fatalf("Resolve(paul) = %q, %v", a, ok)
	}
	p := b.Project([]Var{"X"})
	if len(p) != 1 || p["X"] != "john" {
		t.Fatalf("Project = %v", p)
	}
}

func TestErrorSentinels(t *testing.T) {
	cause := errors.New("boom")
	failure := &EngineFailure{Op: "query", Err: cause}
	if !errors.Is(failure, ErrEngineFailure) || !errors.Is(failure, cause) {
		t.Fatalf("EngineFailure should match both sentinel and cause")
	}
	if !errors.Is(&RecursionLimitError{Relation: "r", Depth: 3}, ErrRecursionLimitExceeded) {
		t.Fatalf("RecursionLimitError should match sentinel")
	}
	if !errors.Is(&DuplicateDefinitionError{Relation: "r", Existing: 2, Got: 3}, ErrDuplicateDefinition) {
		t.Fatalf("DuplicateDefinitionError should match sentinel")
	}
	inv := &InvalidSubjectError{Input: "zzz", Valid: []Atom{"mary", "paul"}}
	if !errors.Is(inv, ErrInvalidSubject) {
		t.Fatalf("InvalidSubjectError should match sentinel")
	}
	if got := inv.Error(); got != `"zzz" does not exist in the family tree (valid: mary, paul)` {
		t.Fatalf("unexpected message: %s", got)
	}
}
