// Package types provides the shared relational data model used across famtree packages.
// This package exists to break import cycles between the engines, the family schema and the session.
// Types in this package are foundational values with no engine-specific behaviour.
package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// ATOMS AND VARIABLES
// =============================================================================

// Atom is a case-normalized identifier, in practice a person's name.
// The zero value is not a valid atom.
type Atom string

// NormalizeAtom trims and lowercases raw input without validating it.
func NormalizeAtom(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NewAtom normalizes raw and validates it as an atom: [a-z][a-z0-9_]*.
func NewAtom(raw string) (Atom, error) {
	s := NormalizeAtom(raw)
	if !isLowerIdentifier(s) {
		return "", &InvalidIdentifierError{Kind: "atom", Value: raw}
	}
	return Atom(s), nil
}

// MustAtom is NewAtom for compile-time seed data. It panics on invalid input.
func MustAtom(raw string) Atom {
	a, err := NewAtom(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Var is a free variable name: [A-Z][A-Za-z0-9_]*.
type Var string

// NewVar validates a variable name.
func NewVar(name string) (Var, error) {
	if !isVarIdentifier(name) {
		return "", &InvalidIdentifierError{Kind: "variable", Value: name}
	}
	return Var(name), nil
}

// ValidateRelation checks a relation name: [a-z][a-z0-9_]*.
func ValidateRelation(name string) error {
	if !isLowerIdentifier(name) {
		return &InvalidIdentifierError{Kind: "relation", Value: name}
	}
	return nil
}

// ValidateAtom checks an already-constructed atom, e.g. Atom("x") built without NewAtom.
func ValidateAtom(a Atom) error {
	if !isLowerIdentifier(string(a)) {
		return &InvalidIdentifierError{Kind: "atom", Value: string(a)}
	}
	return nil
}

// ValidateTerm checks the atom or variable a term carries.
func ValidateTerm(t Term) error {
	if t.IsVar() {
		_, err := NewVar(string(t.v))
		return err
	}
	return ValidateAtom(t.atom)
}

func isLowerIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; c < 'a' || c > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

func isVarIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if c := s[0]; c < 'A' || c > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

// =============================================================================
// TERMS AND GOALS
// =============================================================================

// Term is a goal argument: either a bound Atom or a free Var.
type Term struct {
	atom Atom
	v    Var
}

// A wraps an atom as a bound term.
func A(a Atom) Term { return Term{atom: a} }

// V wraps a variable as a free term.
func V(v Var) Term { return Term{v: v} }

// IsVar reports whether the term is a free variable.
func (t Term) IsVar() bool { return t.v != "" }

// Atom returns the bound atom, or "" for variables.
func (t Term) Atom() Atom { return t.atom }

// Var returns the variable name, or "" for atoms.
func (t Term) Var() Var { return t.v }

func (t Term) String() string {
	if t.IsVar() {
		return string(t.v)
	}
	return string(t.atom)
}

// NotEqual is the relation name reserved for the built-in inequality goal.
const NotEqual = "!="

// Goal is a relation applied to terms, the unit of evaluation.
type Goal struct {
	Relation string
	Args     []Term
}

// G builds a relational goal.
func G(relation string, args ...Term) Goal {
	return Goal{Relation: relation, Args: args}
}

// Neq builds the built-in inequality goal.
func Neq(left, right Term) Goal {
	return Goal{Relation: NotEqual, Args: []Term{left, right}}
}

// IsBuiltin reports whether the goal is evaluated natively rather than against clauses.
func (g Goal) IsBuiltin() bool { return g.Relation == NotEqual }

// Vars returns the distinct variables of the goal in argument order.
func (g Goal) Vars() []Var {
	var out []Var
	seen := make(map[Var]bool, len(g.Args))
	for _, arg := range g.Args {
		if arg.IsVar() && !seen[arg.v] {
			seen[arg.v] = true
			out = append(out, arg.v)
		}
	}
	return out
}

// String renders the goal in Datalog notation.
func (g Goal) String() string {
	if g.IsBuiltin() && len(g.Args) == 2 {
		return fmt.Sprintf("%s != %s", g.Args[0], g.Args[1])
	}
	args := make([]string, len(g.Args))
	for i, arg := range g.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", g.Relation, strings.Join(args, ", "))
}

// ParseTerm converts a command-line token into a term.
// Capitalized tokens are variables, everything else is normalized into an atom.
func ParseTerm(token string) (Term, error) {
	token = strings.TrimSpace(token)
	if token != "" && token[0] >= 'A' && token[0] <= 'Z' {
		v, err := NewVar(token)
		if err != nil {
			return Term{}, err
		}
		return V(v), nil
	}
	a, err := NewAtom(token)
	if err != nil {
		return Term{}, err
	}
	return A(a), nil
}

// =============================================================================
// FACTS AND RULES
// =============================================================================

// Fact is a ground relational tuple.
type Fact struct {
	Relation string
	Args     []Atom
}

// String returns the Datalog representation of the fact.
func (f Fact) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = string(a)
	}
	return fmt.Sprintf("%s(%s).", f.Relation, strings.Join(args, ", "))
}

// Key identifies the fact for duplicate detection.
func (f Fact) Key() string {
	var b strings.Builder
	b.WriteString(f.Relation)
	for _, a := range f.Args {
		b.WriteByte(0)
		b.WriteString(string(a))
	}
	return b.String()
}

// Rule is a derived relation: Relation(Params...) :- Body.
type Rule struct {
	Relation string
	Params   []Var
	Body     []Goal
}

// Head returns the rule head as a goal.
func (r Rule) Head() Goal {
	args := make([]Term, len(r.Params))
	for i, p := range r.Params {
		args[i] = V(p)
	}
	return G(r.Relation, args...)
}

// String renders the rule in Datalog notation.
func (r Rule) String() string {
	body := make([]string, len(r.Body))
	for i, g := range r.Body {
		body[i] = g.String()
	}
	return fmt.Sprintf("%s :- %s.", r.Head(), strings.Join(body, ", "))
}

// Validate checks identifiers and that every head variable occurs in a relational body goal.
func (r Rule) Validate() error {
	if err := ValidateRelation(r.Relation); err != nil {
		return err
	}
	bound := make(map[Var]bool)
	for _, g := range r.Body {
		for _, arg := range g.Args {
			if err := ValidateTerm(arg); err != nil {
				return fmt.Errorf("rule %s: %w", r.Relation, err)
			}
		}
		if g.IsBuiltin() {
			if len(g.Args) != 2 {
				return fmt.Errorf("rule %s: inequality takes 2 arguments, got %d", r.Relation, len(g.Args))
			}
			continue
		}
		if err := ValidateRelation(g.Relation); err != nil {
			return fmt.Errorf("rule %s: %w", r.Relation, err)
		}
		for _, v := range g.Vars() {
			bound[v] = true
		}
	}
	for _, p := range r.Params {
		if _, err := NewVar(string(p)); err != nil {
			return fmt.Errorf("rule %s: %w", r.Relation, err)
		}
		if !bound[p] {
			return &UnboundHeadVariableError{Relation: r.Relation, Var: p}
		}
	}
	return nil
}

// =============================================================================
// BINDINGS
// =============================================================================

// Binding maps variable names to atoms.
type Binding map[Var]Atom

// Clone returns an independent copy.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b)+2)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Resolve returns the atom a term stands for under b, if any.
func (b Binding) Resolve(t Term) (Atom, bool) {
	if !t.IsVar() {
		return t.atom, true
	}
	a, ok := b[t.v]
	return a, ok
}

// Project keeps only the given variables.
func (b Binding) Project(vars []Var) Binding {
	out := make(Binding, len(vars))
	for _, v := range vars {
		if a, ok := b[v]; ok {
			out[v] = a
		}
	}
	return out
}

// RelationInfo describes a known relation.
type RelationInfo struct {
	Name  string
	Arity int
	Facts int
	Rules []Rule
}
