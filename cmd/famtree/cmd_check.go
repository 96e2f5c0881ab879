package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"famtree/internal/family"
	"famtree/internal/logic"
	"famtree/internal/mangle"
	"famtree/internal/types"
)

// checkCmd cross-checks the two engines
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the native and Mangle engines give the same answers",
	Long: `Loads the family tree into both engines and runs every report goal
(each relation for each valid subject, plus each relation fully open) on both.
Answers are compared as sets. Exits non-zero on any disagreement.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// checkGoals lists every goal a report can issue plus the open form of each relation.
func checkGoals(ctx context.Context, engine types.Engine) ([]types.Goal, error) {
	subjects, err := family.ValidSubjects(ctx, engine)
	if err != nil {
		return nil, err
	}
	var goals []types.Goal
	for _, relation := range family.ReportOrder {
		goals = append(goals, types.G(relation, types.V("X"), types.V("Y")))
		for _, s := range subjects {
			goals = append(goals, family.RelationGoal(relation, s))
		}
	}
	return goals, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	return guard("differential check", func() error {
		var parents []types.Fact
		if cfg.FactsFile != "" {
			var err error
			if parents, err = family.LoadFactFile(cfg.FactsFile); err != nil {
				return err
			}
		}

		native := logic.NewEngine(logic.Config{MaxDepth: cfg.Evaluator.MaxDepth})
		external := mangle.NewEngine(mangle.Config{
			FactLimit:    cfg.Mangle.FactLimit,
			QueryTimeout: int(cfg.GetQueryTimeout().Seconds()),
		})
		for _, e := range []types.Engine{native, external} {
			if err := family.Load(e, parents); err != nil {
				return fmt.Errorf("loading family tree: %w", err)
			}
		}

		goals, err := checkGoals(ctx, native)
		if err != nil {
			return err
		}
		report, err := mangle.Differential(ctx, native, external, goals)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, m := range report.Mismatches {
			fmt.Fprintln(out, m)
		}
		if !report.OK() {
			return fmt.Errorf("%d of %d goals disagree", len(report.Mismatches), report.Goals)
		}
		stats := external.GetStats()
		logger.Debug("Engines agree",
			zap.Int("goals", report.Goals),
			zap.Int("mangle_facts", stats.TotalFacts),
			zap.Any("predicates", stats.PredicateCounts))
		fmt.Fprintf(out, "native and mangle agree on %d goals\n", report.Goals)
		fmt.Fprintf(out, "mangle store: %d facts across %d predicates\n", stats.TotalFacts, len(stats.PredicateCounts))
		return nil
	})
}
