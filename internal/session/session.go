// Package session runs the prompt loop: read a name, validate it against the
// people with a recorded parent, and print their family report.
//
// The loop:
//
//	AwaitInput → Validating → Invalid → AwaitInput
//	                        → Valid → Reporting → AwaitInput | Done
//
// EOF on input ends the session normally.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"famtree/internal/family"
	"famtree/internal/logging"
	"famtree/internal/render"
	"famtree/internal/types"
)

// State is a step of the prompt loop.
type State int

const (
	StateAwaitInput State = iota
	StateValidating
	StateInvalid
	StateValid
	StateReporting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitInput:
		return "await_input"
	case StateValidating:
		return "validating"
	case StateInvalid:
		return "invalid"
	case StateValid:
		return "valid"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loop decides what happens after a successful report.
type Loop int

const (
	// LoopForever prompts again after every report.
	LoopForever Loop = iota
	// LoopOnce ends the session after the first report.
	LoopOnce
)

// ParseLoop maps a config value to a Loop.
func ParseLoop(s string) (Loop, error) {
	switch strings.ToLower(s) {
	case "", "forever":
		return LoopForever, nil
	case "once":
		return LoopOnce, nil
	default:
		return LoopForever, fmt.Errorf("unknown loop mode %q", s)
	}
}

// Output receives user-facing lines.
type Output interface {
	EmitLine(l render.Line) error
	Prompt(text string) error
}

// Diagnostics receives developer-facing messages. *logging.Logger satisfies it.
type Diagnostics interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Config holds session parameters.
type Config struct {
	Loop   Loop
	Prompt string

	// OnState, if set, is called on every state change.
	OnState func(State)

	// SlowReport is the report duration past which a warning is logged.
	SlowReport time.Duration
}

// DefaultSlowReport is used when Config.SlowReport is zero.
const DefaultSlowReport = 500 * time.Millisecond

func (c Config) slowReport() time.Duration {
	if c.SlowReport <= 0 {
		return DefaultSlowReport
	}
	return c.SlowReport
}

// DefaultConfig returns the interactive defaults.
func DefaultConfig() Config {
	return Config{Loop: LoopForever, Prompt: "> ", SlowReport: DefaultSlowReport}
}

// Session is one interactive run against an engine.
type Session struct {
	id     string
	engine types.Engine
	in     io.Reader
	out    Output
	diag   Diagnostics
	audit  *logging.AuditLogger
	config Config
	state  State
}

// New creates a session. A nil diag logs to the session category.
func New(engine types.Engine, in io.Reader, out Output, diag Diagnostics, cfg Config) *Session {
	if diag == nil {
		diag = logging.Get(logging.CategorySession)
	}
	id := uuid.NewString()
	logging.Session("Creating session %s", id)
	return &Session{
		id:     id,
		engine: engine,
		in:     in,
		out:    out,
		diag:   diag,
		audit:  logging.AuditWithSession(id),
		config: cfg,
	}
}

// ID returns the session correlation ID.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

func (s *Session) setState(next State) {
	s.state = next
	if s.config.OnState != nil {
		s.config.OnState(next)
	}
}

// readLines feeds input lines to a channel until EOF, a read error, or done.
func readLines(r io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

// Run drives the loop until EOF, LoopOnce completes, ctx is cancelled,
// or a fatal error occurs.
func (s *Session) Run(ctx context.Context) error {
	s.audit.SessionStart()
	defer s.audit.SessionEnd()

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(s.in, done)

	for {
		s.setState(StateAwaitInput)
		valid, err := family.ValidSubjects(ctx, s.engine)
		if err != nil {
			return fmt.Errorf("computing valid subjects: %w", err)
		}
		s.diag.Debug("Valid names are: %s", joinAtoms(valid))

		if err := s.out.Prompt(s.config.Prompt); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}

		var input string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.setState(StateDone)
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				logging.Session("Session %s reached end of input", s.id)
				return nil
			}
			input = line
		}

		s.setState(StateValidating)
		subject, err := Validate(input, valid)
		if err != nil {
			var invalid *types.InvalidSubjectError
			if !errors.As(err, &invalid) {
				return err
			}
			s.setState(StateInvalid)
			s.audit.Subject(invalid.Input, false)
			s.diag.Warn("%v", err)
			if err := s.emit(render.Invalid(invalid.Input), render.ValidNames(atomStrings(invalid.Valid))); err != nil {
				return err
			}
			continue
		}

		s.setState(StateValid)
		s.audit.Subject(string(subject), true)

		s.setState(StateReporting)
		if err := s.Report(ctx, subject); err != nil {
			return err
		}

		if s.config.Loop == LoopOnce {
			s.setState(StateDone)
			return nil
		}
	}
}

// Validate normalizes input and checks it against the valid subjects.
func Validate(input string, valid []types.Atom) (types.Atom, error) {
	subject := types.Atom(types.NormalizeAtom(input))
	if subject != "" && slices.Contains(valid, subject) {
		return subject, nil
	}
	return "", &types.InvalidSubjectError{Input: strings.TrimSpace(input), Valid: valid}
}

// Report prints the family report for subject: a heading, then one section
// per relation with each relative listed once.
func (s *Session) Report(ctx context.Context, subject types.Atom) error {
	rl := logging.WithRequestID(logging.CategoryQuery, uuid.NewString()).WithField("subject", subject)
	timer := logging.StartTimer(logging.CategoryPerformance, "report "+string(subject))
	rl.Info("Building report")

	name := string(subject)
	if err := s.emit(render.FamilyHeading(name)); err != nil {
		return err
	}

	total := 0
	for _, relation := range family.ReportOrder {
		if err := s.emit(render.RelationHeading(relation, name)); err != nil {
			return err
		}

		goal := family.RelationGoal(relation, subject)
		relatives, err := Relatives(ctx, s.engine, goal)
		s.audit.Query(rl.RequestID(), goal.String(), len(relatives), err)
		if err != nil {
			rl.Error("%s failed: %v", goal, err)
			return fmt.Errorf("report for %s: %w", subject, err)
		}
		rl.Debug("%s: %d results", goal, len(relatives))

		if len(relatives) == 0 {
			if err := s.emit(render.Empty(name, relation)); err != nil {
				return err
			}
			continue
		}
		for _, r := range relatives {
			if err := s.emit(render.Result(string(r), relation, name)); err != nil {
				return err
			}
		}
		total += len(relatives)
	}

	elapsed := timer.StopWithThreshold(s.config.slowReport())
	s.audit.Report(rl.RequestID(), name, total, elapsed)
	rl.Info("Report complete: %d relatives in %v", total, elapsed)
	return nil
}

// Relatives runs goal and returns the distinct X bindings in first-seen order.
// Engine errors come back as *types.EngineFailure.
func Relatives(ctx context.Context, engine types.Engine, goal types.Goal) ([]types.Atom, error) {
	var out []types.Atom
	seen := make(map[types.Atom]bool)
	for b, err := range engine.Query(ctx, goal) {
		if err != nil {
			if errors.Is(err, types.ErrEngineFailure) {
				return nil, err
			}
			return nil, &types.EngineFailure{Op: "query " + goal.String(), Err: err}
		}
		x := b["X"]
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out, nil
}

func (s *Session) emit(lines ...render.Line) error {
	for _, l := range lines {
		if err := s.out.EmitLine(l); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func atomStrings(atoms []types.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = string(a)
	}
	return out
}

func joinAtoms(atoms []types.Atom) string {
	return strings.Join(atomStrings(atoms), ", ")
}
