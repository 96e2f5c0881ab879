// Package mangle provides a Google Mangle backed implementation of types.Engine.
// Facts and rules are kept as structured values, rendered into a Mangle program,
// and evaluated to a fixpoint before the first query after any change.
package mangle

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"famtree/internal/logging"
	"famtree/internal/types"
)

// Config holds Mangle engine configuration.
// FactLimit caps both asserted facts and the facts evaluation may derive.
// QueryTimeout bounds reading answers out of the evaluated store; the
// fixpoint itself is bounded by FactLimit, not by the timeout.
type Config struct {
	FactLimit    int `json:"fact_limit"`
	QueryTimeout int `json:"query_timeout"` // seconds
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FactLimit:    100000,
		QueryTimeout: 30,
	}
}

// Engine wraps the Google Mangle engine behind the famtree Engine interface.
// Unlike the native evaluator it has set semantics: each derived tuple is
// reported once, in store order.
type Engine struct {
	config Config

	mu             sync.RWMutex
	arity          map[string]int
	order          []string
	facts          []types.Fact
	factKeys       map[string]struct{}
	rules          []types.Rule
	dirty          bool
	factLimitWarn  bool
	store          *factstore.ConcurrentFactStore
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
}

var _ types.Engine = (*Engine)(nil)

// Stats contains engine statistics.
type Stats struct {
	TotalFacts      int            `json:"total_facts"`
	PredicateCounts map[string]int `json:"predicate_counts"`
	LastUpdate      time.Time      `json:"last_update"`
}

// NewEngine creates a new Mangle engine instance.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config:         cfg,
		arity:          make(map[string]int),
		factKeys:       make(map[string]struct{}),
		predicateIndex: make(map[string]ast.PredicateSym),
	}
}

func (e *Engine) defineLocked(relation string, arity int) error {
	if existing, ok := e.arity[relation]; ok {
		if existing != arity {
			return &types.DuplicateDefinitionError{Relation: relation, Existing: existing, Got: arity}
		}
		return nil
	}
	e.arity[relation] = arity
	e.order = append(e.order, relation)
	return nil
}

// undefineLocked drops a relation added by the last defineLocked call.
func (e *Engine) undefineLocked(relation string) {
	delete(e.arity, relation)
	if n := len(e.order); n > 0 && e.order[n-1] == relation {
		e.order = e.order[:n-1]
	}
}

// checkSyntaxLocked parses the rendered program so names Mangle reserves
// (let, do, bound, ...) are refused when asserted, not on the next query.
func (e *Engine) checkSyntaxLocked() error {
	if _, err := parse.Unit(strings.NewReader(e.programLocked())); err != nil {
		return fmt.Errorf("program is not valid Mangle: %w", err)
	}
	return nil
}

// AssertFact records a ground fact. Duplicates are no-ops.
func (e *Engine) AssertFact(relation string, args ...types.Atom) error {
	if err := types.ValidateRelation(relation); err != nil {
		return err
	}
	for _, a := range args {
		if err := types.ValidateAtom(a); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config.FactLimit > 0 && len(e.facts) >= e.config.FactLimit {
		return fmt.Errorf("fact limit exceeded: %d", e.config.FactLimit)
	}
	_, known := e.arity[relation]
	if err := e.defineLocked(relation, len(args)); err != nil {
		return err
	}
	if !known {
		if err := e.checkSyntaxLocked(); err != nil {
			e.undefineLocked(relation)
			return fmt.Errorf("fact %s: %w", relation, err)
		}
	}

	fact := types.Fact{Relation: relation, Args: append([]types.Atom(nil), args...)}
	if _, dup := e.factKeys[fact.Key()]; dup {
		return nil
	}
	e.factKeys[fact.Key()] = struct{}{}
	e.facts = append(e.facts, fact)
	e.dirty = true
	e.maybeWarnFactLimit()
	return nil
}

// AssertRule records relation(params...) :- body.
func (e *Engine) AssertRule(relation string, params []types.Var, body ...types.Goal) error {
	rule := types.Rule{
		Relation: relation,
		Params:   append([]types.Var(nil), params...),
		Body:     append([]types.Goal(nil), body...),
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, known := e.arity[relation]
	if err := e.defineLocked(relation, len(params)); err != nil {
		return err
	}
	e.rules = append(e.rules, rule)
	if err := e.checkSyntaxLocked(); err != nil {
		e.rules = e.rules[:len(e.rules)-1]
		if !known {
			e.undefineLocked(relation)
		}
		return fmt.Errorf("rule %s: %w", relation, err)
	}
	e.dirty = true
	return nil
}

func (e *Engine) maybeWarnFactLimit() {
	if e.config.FactLimit == 0 || e.factLimitWarn {
		return
	}
	utilization := float64(len(e.facts)) / float64(e.config.FactLimit)
	if utilization >= 0.85 {
		logging.Get(logging.CategoryKernel).Warn("fact store is %.1f%% of configured capacity (%d / %d)", utilization*100, len(e.facts), e.config.FactLimit)
		e.factLimitWarn = true
	}
}

// Program renders the current facts' declarations and all rules as Mangle source.
// Names are plain identifiers that already parsed when asserted.
func (e *Engine) Program() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.programLocked()
}

func (e *Engine) programLocked() string {
	var b strings.Builder
	for _, rel := range e.order {
		params := make([]string, e.arity[rel])
		for i := range params {
			params[i] = fmt.Sprintf("A%d", i)
		}
		fmt.Fprintf(&b, "Decl %s(%s).\n", rel, strings.Join(params, ", "))
	}
	for _, r := range e.rules {
		head := make([]string, len(r.Params))
		for i, p := range r.Params {
			head[i] = string(p)
		}
		body := make([]string, len(r.Body))
		for i, g := range r.Body {
			body[i] = renderGoal(g)
		}
		fmt.Fprintf(&b, "%s(%s) :- %s.\n", r.Relation, strings.Join(head, ", "), strings.Join(body, ", "))
	}
	return b.String()
}

func renderTerm(t types.Term) string {
	if t.IsVar() {
		return string(t.Var())
	}
	return "/" + string(t.Atom())
}

func renderGoal(g types.Goal) string {
	if g.IsBuiltin() {
		return fmt.Sprintf("%s != %s", renderTerm(g.Args[0]), renderTerm(g.Args[1]))
	}
	args := make([]string, len(g.Args))
	for i, a := range g.Args {
		args[i] = renderTerm(a)
	}
	return fmt.Sprintf("%s(%s)", g.Relation, strings.Join(args, ", "))
}

// rebuildLocked analyzes the program, reloads facts and evaluates rules to a fixpoint.
func (e *Engine) rebuildLocked() error {
	timer := logging.StartTimer(logging.CategoryKernel, "mangle rebuild")
	defer timer.Stop()

	unit, err := parse.Unit(bytes.NewReader([]byte(e.programLocked())))
	if err != nil {
		return fmt.Errorf("failed to parse program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return fmt.Errorf("failed to analyze program: %w", err)
	}

	index := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		index[sym.Symbol] = sym
	}

	baseStore := factstore.NewSimpleInMemoryStore()
	store := factstore.NewConcurrentFactStore(baseStore)
	for _, fact := range e.facts {
		atom, err := factToAtom(index, fact)
		if err != nil {
			return err
		}
		store.Add(atom)
	}

	var opts []mengine.EvalOption
	if e.config.FactLimit > 0 {
		opts = append(opts, mengine.WithCreatedFactLimit(e.config.FactLimit))
	}
	stats, err := mengine.EvalProgramWithStats(programInfo, store, opts...)
	if err != nil {
		return fmt.Errorf("failed to evaluate program: %w", err)
	}
	logging.KernelDebug("mangle evaluation complete: %+v", stats)

	e.programInfo = programInfo
	e.predicateIndex = index
	e.store = &store
	e.dirty = false
	return nil
}

func factToAtom(index map[string]ast.PredicateSym, fact types.Fact) (ast.Atom, error) {
	sym, ok := index[fact.Relation]
	if !ok {
		return ast.Atom{}, fmt.Errorf("predicate %s is not declared", fact.Relation)
	}
	if len(fact.Args) != sym.Arity {
		return ast.Atom{}, fmt.Errorf("predicate %s expects %d args, got %d", fact.Relation, sym.Arity, len(fact.Args))
	}
	args := make([]ast.BaseTerm, len(fact.Args))
	for i, a := range fact.Args {
		name, err := ast.Name("/" + string(a))
		if err != nil {
			return ast.Atom{}, fmt.Errorf("predicate %s arg %d: %w", fact.Relation, i, err)
		}
		args[i] = name
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

// derived returns the evaluated tuples of a relation, rebuilding first when stale.
func (e *Engine) derived(ctx context.Context, relation string, arity int) ([][]types.Atom, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if known, ok := e.arity[relation]; !ok || known != arity {
		return nil, nil
	}
	if e.dirty || e.store == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.rebuildLocked(); err != nil {
			return nil, err
		}
	}
	sym, ok := e.predicateIndex[relation]
	if !ok {
		return nil, nil
	}

	var tuples [][]types.Atom
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tuple := make([]types.Atom, len(atom.Args))
		for i, arg := range atom.Args {
			tuple[i] = termToAtom(arg)
		}
		tuples = append(tuples, tuple)
		return nil
	})
	return tuples, err
}

func termToAtom(term ast.BaseTerm) types.Atom {
	if c, ok := term.(ast.Constant); ok {
		return types.Atom(strings.TrimPrefix(c.Symbol, "/"))
	}
	return types.Atom(strings.TrimPrefix(fmt.Sprintf("%v", term), "/"))
}

// Query evaluates goal against the fixpoint. The derived tuples are read
// under the engine lock and yielded after it is released.
func (e *Engine) Query(ctx context.Context, goal types.Goal) iter.Seq2[types.Binding, error] {
	return func(yield func(types.Binding, error) bool) {
		if goal.IsBuiltin() {
			if len(goal.Args) == 2 && !goal.Args[0].IsVar() && !goal.Args[1].IsVar() &&
				goal.Args[0].Atom() != goal.Args[1].Atom() {
				yield(types.Binding{}, nil)
			}
			return
		}

		if e.config.QueryTimeout > 0 {
			if _, ok := ctx.Deadline(); !ok {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(e.config.QueryTimeout)*time.Second)
				defer cancel()
			}
		}

		tuples, err := e.derived(ctx, goal.Relation, len(goal.Args))
		if err != nil {
			yield(nil, &types.EngineFailure{Op: "mangle query " + goal.String(), Err: err})
			return
		}

		vars := goal.Vars()
		for _, tuple := range tuples {
			b, ok := match(goal.Args, tuple)
			if !ok {
				continue
			}
			if !yield(b.Project(vars), nil) {
				return
			}
		}
	}
}

func match(args []types.Term, tuple []types.Atom) (types.Binding, bool) {
	b := make(types.Binding, len(args))
	for i, arg := range args {
		if bound, ok := b.Resolve(arg); ok {
			if bound != tuple[i] {
				return nil, false
			}
			continue
		}
		b[arg.Var()] = tuple[i]
	}
	return b, true
}

// Relations describes the loaded schema.
func (e *Engine) Relations() []types.RelationInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.RelationInfo, 0, len(e.order))
	for _, rel := range e.order {
		info := types.RelationInfo{Name: rel, Arity: e.arity[rel]}
		for _, f := range e.facts {
			if f.Relation == rel {
				info.Facts++
			}
		}
		for _, r := range e.rules {
			if r.Relation == rel {
				info.Rules = append(info.Rules, r)
			}
		}
		out = append(out, info)
	}
	return out
}

// GetStats returns statistics for the evaluated store.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[string]int)
	total := 0
	if e.store != nil {
		for _, sym := range e.store.ListPredicates() {
			n := 0
			_ = e.store.GetFacts(ast.NewQuery(sym), func(ast.Atom) error {
				n++
				return nil
			})
			counts[sym.Symbol] = n
			total += n
		}
	}
	return Stats{
		TotalFacts:      total,
		PredicateCounts: counts,
		LastUpdate:      time.Now(),
	}
}
