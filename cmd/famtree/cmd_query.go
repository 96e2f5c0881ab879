package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"famtree/internal/config"
	"famtree/internal/family"
	"famtree/internal/logging"
	"famtree/internal/render"
	"famtree/internal/session"
	"famtree/internal/types"
)

// askCmd prints one family report without prompting
var askCmd = &cobra.Command{
	Use:   "ask [name]",
	Short: "Print the family report for one person",
	Long: `Prints the same report the interactive prompt shows for a name.
Exits non-zero if the name has no recorded parent.

Example:
  famtree ask susan`,
	Args: cobra.ExactArgs(1),
	RunE: askSubject,
}

// subjectsCmd lists valid names
var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List the names that can be asked about",
	Args:  cobra.NoArgs,
	RunE:  listSubjects,
}

// queryCmd runs an arbitrary goal
var queryCmd = &cobra.Command{
	Use:   "query [relation] [args...]",
	Short: "Run a goal against the fact base",
	Long: `Runs relation(args...) and prints one binding per line.
Capitalized arguments are variables, everything else is a name.

Examples:
  famtree query uncle X susan
  famtree query sibling X Y
  famtree query parent john mary`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// schemaCmd shows relations and rules
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show relations, arities and rules",
	Args:  cobra.NoArgs,
	RunE:  showSchema,
}

func askSubject(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}

	var (
		engine queryEngine
		valid  []types.Atom
	)
	err = guard("boot", func() (err error) {
		if engine, err = bootEngine(ctx); err != nil {
			return err
		}
		valid, err = family.ValidSubjects(ctx, engine)
		return err
	})
	if err != nil {
		return err
	}

	// An unknown name is a user error, not a crash: no guard.
	subject, err := session.Validate(args[0], valid)
	if err != nil {
		var invalid *types.InvalidSubjectError
		if errors.As(err, &invalid) {
			names := make([]string, len(invalid.Valid))
			for i, a := range invalid.Valid {
				names[i] = string(a)
			}
			_ = printer.EmitLine(render.Invalid(invalid.Input))
			_ = printer.EmitLine(render.ValidNames(names))
		}
		return err
	}

	logger.Debug("Reporting", zap.String("subject", string(subject)))
	return guard("report "+string(subject), func() error {
		s := session.New(engine, cmd.InOrStdin(), printer, nil, session.DefaultConfig())
		return s.Report(ctx, subject)
	})
}

func listSubjects(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	return guard("list subjects", func() error {
		engine, err := bootEngine(ctx)
		if err != nil {
			return err
		}
		valid, err := family.ValidSubjects(ctx, engine)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, a := range valid {
			fmt.Fprintln(out, a)
		}
		return nil
	})
}

// parseGoal turns CLI tokens into a goal, validating every identifier.
func parseGoal(args []string) (types.Goal, error) {
	relation := strings.ToLower(args[0])
	if err := types.ValidateRelation(relation); err != nil {
		return types.Goal{}, err
	}
	terms := make([]types.Term, 0, len(args)-1)
	for _, tok := range args[1:] {
		t, err := types.ParseTerm(tok)
		if err != nil {
			return types.Goal{}, err
		}
		terms = append(terms, t)
	}
	return types.G(relation, terms...), nil
}

// formatBinding prints vars in goal order: "X = paul, Y = susan".
func formatBinding(vars []types.Var, b types.Binding) string {
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, fmt.Sprintf("%s = %s", v, b[v]))
	}
	return strings.Join(parts, ", ")
}

func runQuery(cmd *cobra.Command, args []string) error {
	goal, err := parseGoal(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return guard("query "+goal.String(), func() error {
		engine, err := bootEngine(ctx)
		if err != nil {
			return err
		}

		rl := logging.WithRequestID(logging.CategoryQuery, uuid.NewString())
		out := cmd.OutOrStdout()
		vars := goal.Vars()
		n := 0
		for b, err := range engine.Query(ctx, goal) {
			if err != nil {
				rl.Error("%s failed: %v", goal, err)
				return err
			}
			n++
			if len(vars) > 0 {
				fmt.Fprintln(out, formatBinding(vars, b))
			}
		}
		rl.Info("%s: %d results", goal, n)

		switch {
		case len(vars) == 0:
			fmt.Fprintln(out, n > 0)
		case n == 0:
			fmt.Fprintln(out, "no results")
		}
		return nil
	})
}

func showSchema(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	return guard("schema", func() error {
		engine, err := bootEngine(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		infos := engine.Relations()
		sort.SliceStable(infos, func(i, j int) bool {
			// Base relations first, then derived, each in definition order.
			return len(infos[i].Rules) == 0 && len(infos[j].Rules) > 0
		})

		if cfg.Render.Style == config.StyleTerminal {
			text, err := render.Markdown(render.SchemaMarkdown(infos), 80)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		}

		for _, info := range infos {
			fmt.Fprintf(out, "%s/%d", info.Name, info.Arity)
			if info.Facts > 0 {
				fmt.Fprintf(out, "  %d facts", info.Facts)
			}
			fmt.Fprintln(out)
			for _, r := range info.Rules {
				fmt.Fprintf(out, "  %s\n", r)
			}
		}
		return nil
	})
}
