package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"famtree/internal/types"
)

// execute runs the CLI with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()

	// Flags are package globals; reset them between runs.
	verbose, engineName, styleName, factsPath, once = false, "", "", "", false
	configPath = filepath.Join(t.TempDir(), "config.yaml")
	for _, env := range []string{"FAMTREE_ENGINE", "FAMTREE_STYLE", "FAMTREE_LOOP", "FAMTREE_DEBUG"} {
		t.Setenv(env, "")
	}

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestInteractiveSession(t *testing.T) {
	for _, engine := range []string{"native", "mangle"} {
		t.Run(engine, func(t *testing.T) {
			out, err := execute(t, "zzz\nsusan\n", "--style", "plain", "--engine", engine)
			require.NoError(t, err)

			assert.Contains(t, out, "zzz does not exist in the family tree.")
			assert.Contains(t, out, "Valid names are: mary, paul, susan, james, alice")
			assert.Contains(t, out, "Family tree of susan:")
			assert.Contains(t, out, "mary is the parent of susan")
			assert.Contains(t, out, "john is the grandparent of susan")
			assert.Contains(t, out, "paul is the uncle of susan")
			assert.Contains(t, out, "james is the sibling of susan")
			assert.Contains(t, out, "susan doesn't have any children.")
		})
	}
}

func TestInteractiveOnce(t *testing.T) {
	out, err := execute(t, "james\nalice\n", "--style", "plain", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "Family tree of james:")
	assert.NotContains(t, out, "Family tree of alice:")
}

func TestAskCommand(t *testing.T) {
	out, err := execute(t, "", "ask", "Alice", "--style", "plain")
	require.NoError(t, err)
	assert.Contains(t, out, "paul is the parent of alice")
	assert.Contains(t, out, "mary is the uncle of alice")
	assert.Contains(t, out, "alice doesn't have any sibling.")
}

func TestAskUnknownName(t *testing.T) {
	out, err := execute(t, "", "ask", "zzz", "--style", "plain")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidSubject))
	assert.Contains(t, out, "zzz does not exist in the family tree.")
}

func TestAskHTMLStyle(t *testing.T) {
	out, err := execute(t, "", "ask", "susan", "--style", "html")
	require.NoError(t, err)
	assert.Contains(t, out, `<style fg="#ffecc8"><b><i>Mary</i></b></style> is the parent of <style fg="#fff7d1"><b>Susan</b></style>`)
}

func TestSubjectsCommand(t *testing.T) {
	out, err := execute(t, "", "subjects")
	require.NoError(t, err)
	assert.Equal(t, "mary\npaul\nsusan\njames\nalice\n", out)
}

func TestQueryCommand(t *testing.T) {
	out, err := execute(t, "", "query", "uncle", "X", "susan")
	require.NoError(t, err)
	assert.Equal(t, "X = paul\n", out)

	out, err = execute(t, "", "query", "parent", "john", "mary")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "", "query", "sibling", "X", "X")
	require.NoError(t, err)
	assert.Equal(t, "no results\n", out)

	_, err = execute(t, "", "query", "parent", "mary-ann", "X")
	assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "", "schema", "--style", "plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "parent/2  5 facts\n"), out)
	assert.Contains(t, out, "  sibling(X, Y) :- parent(Z, X), parent(Z, Y), X != Y.")

	out, err = execute(t, "", "schema", "--style", "terminal")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema")
	assert.Contains(t, out, "grandparent")
}

func TestFactsFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parents:\n  - {parent: ann, child: bea}\n"), 0644))

	out, err := execute(t, "", "subjects", "--facts", path)
	require.NoError(t, err)
	assert.Equal(t, "bea\n", out)
}

func TestInvalidEngineFlag(t *testing.T) {
	_, err := execute(t, "", "subjects", "--engine", "prolog")
	assert.Error(t, err)
}

func TestGuardRecoversPanic(t *testing.T) {
	logger = zap.NewNop()
	err := guard("explode", func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explode panicked: boom")

	sentinel := errors.New("failed")
	assert.Equal(t, sentinel, guard("fail", func() error { return sentinel }))
	assert.NoError(t, guard("ok", func() error { return nil }))
}

func TestParseGoal(t *testing.T) {
	g, err := parseGoal([]string{"Grandparent", "X", "alice"})
	require.NoError(t, err)
	assert.Equal(t, "grandparent(X, alice)", g.String())
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "", "check")
	require.NoError(t, err)
	assert.Equal(t, "native and mangle agree on 30 goals\nmangle store: 20 facts across 5 predicates\n", out)
}

func TestInterruptEndsSessionCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := executeContext(t, ctx, "susan\n", "--style", "plain")
	require.NoError(t, err)
	assert.NotContains(t, out, "Family tree of susan:")
}
