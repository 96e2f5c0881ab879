package mangle

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"famtree/internal/logging"
	"famtree/internal/types"
)

// Mismatch is one goal on which two engines disagree.
type Mismatch struct {
	Goal      types.Goal
	OnlyLeft  []string
	OnlyRight []string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: only left %v, only right %v", m.Goal, m.OnlyLeft, m.OnlyRight)
}

// DiffReport summarizes a differential run.
type DiffReport struct {
	Goals      int
	Mismatches []Mismatch
}

// OK reports whether every goal agreed.
func (r DiffReport) OK() bool { return len(r.Mismatches) == 0 }

// Differential evaluates the same goals on two engines and compares the
// answers as sets. Duplicate derivations and ordering are ignored.
func Differential(ctx context.Context, left, right types.Engine, goals []types.Goal) (DiffReport, error) {
	timer := logging.StartTimer(logging.CategoryKernel, "differential check")
	defer timer.Stop()

	leftSets := make([][]string, len(goals))
	rightSets := make([][]string, len(goals))

	// Each side only reads its own engine, so the two can run in parallel.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return collectSets(egCtx, left, goals, leftSets) })
	eg.Go(func() error { return collectSets(egCtx, right, goals, rightSets) })
	if err := eg.Wait(); err != nil {
		return DiffReport{}, err
	}

	report := DiffReport{Goals: len(goals)}
	for i, g := range goals {
		onlyL := difference(leftSets[i], rightSets[i])
		onlyR := difference(rightSets[i], leftSets[i])
		if len(onlyL) > 0 || len(onlyR) > 0 {
			m := Mismatch{Goal: g, OnlyLeft: onlyL, OnlyRight: onlyR}
			logging.KernelError("differential mismatch: %s", m)
			report.Mismatches = append(report.Mismatches, m)
		}
	}
	logging.Kernel("differential check: %d goals, %d mismatches", report.Goals, len(report.Mismatches))
	return report, nil
}

func collectSets(ctx context.Context, engine types.Engine, goals []types.Goal, out [][]string) error {
	for i, g := range goals {
		set, err := answerSet(engine.Query(ctx, g))
		if err != nil {
			return fmt.Errorf("%s: %w", g, err)
		}
		out[i] = set
	}
	return nil
}

// answerSet renders each binding as sorted "V=a" pairs and returns the
// distinct renderings in sorted order.
func answerSet(seq iter.Seq2[types.Binding, error]) ([]string, error) {
	var out []string
	for b, err := range seq {
		if err != nil {
			return nil, err
		}
		pairs := make([]string, 0, len(b))
		for v, a := range b {
			pairs = append(pairs, string(v)+"="+string(a))
		}
		sort.Strings(pairs)
		out = append(out, strings.Join(pairs, ","))
	}
	sort.Strings(out)
	return slices.Compact(out), nil
}

// difference returns the elements of a missing from b. Both are sorted.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if _, found := slices.BinarySearch(b, s); !found {
			out = append(out, s)
		}
	}
	return out
}
