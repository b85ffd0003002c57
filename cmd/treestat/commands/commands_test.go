package commands_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/cmd/treestat/commands"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib/gittest"
)

const moduleV1 = `def add(a, b):
    return a + b
`

const moduleV2 = `def add(a, b):
    if a > b:
        return a + b
    return b + a


def sub(a, b):
    return a - b
`

const testModule = `from pkg.calc import add


def test_add():
    assert add(1, 2) == 3
`

// fixture is a three-commit repository with an external snapshot store.
type fixture struct {
	repo  *gittest.Repo
	cache string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	repo := gittest.New(t)

	repo.WriteFile("pkg/calc.py", moduleV1)
	repo.Commit("add calc")

	repo.WriteFile("tests/test_calc.py", testModule)
	repo.Commit("add tests")

	repo.WriteFile("pkg/calc.py", moduleV2)
	repo.Commit("grow calc")

	return fixture{repo: repo, cache: filepath.Join(t.TempDir(), "store")}
}

func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root, err := commands.NewRootCommand(&out)
	require.NoError(t, err)

	root.SetArgs(append([]string{"-C", f.repo.Path, "--cache", f.cache, "-q", "--config", f.config(t)}, args...))
	root.SetOut(&out)
	root.SetErr(&out)

	err = root.Execute()

	return out.String(), err
}

func (f fixture) config(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "treestat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0o600))

	return path
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	root, err := commands.NewRootCommand(&out)
	require.NoError(t, err)

	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "treestat "))
}

func TestRootCommandListsSubcommands(t *testing.T) {
	t.Parallel()

	root, err := commands.NewRootCommand(&bytes.Buffer{})
	require.NoError(t, err)

	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"update", "log", "diff", "stats", "csv", "plot", "blast", "verify", "version"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "repo", "cache", "backend", "cruft-scores", "test-pattern", "exclude-pattern", "jobs"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestUpdateThenVerify(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.run(t, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded 3 of 3 commits")

	out, err = f.run(t, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = f.run(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "consistent")
}

func TestUpdateResumesNewCommits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t, "update")
	require.NoError(t, err)

	f.repo.WriteFile("pkg/extra.py", moduleV1)
	f.repo.Commit("add extra")

	out, err := f.run(t, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded 1 of 4 commits")
}

func TestLogCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.run(t, "log", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "grow calc")
	assert.Contains(t, out, "add tests")
	assert.Contains(t, out, "NON-TEST CODE:")
	assert.Contains(t, out, "TEST CODE:")
	assert.Contains(t, out, "Author: Test User <test@example.com>")
	assert.Less(t, strings.Index(out, "grow calc"), strings.Index(out, "add calc"))

	reversed, err := f.run(t, "log", "--no-color", "--reverse")
	require.NoError(t, err)
	assert.Less(t, strings.Index(reversed, "add calc"), strings.Index(reversed, "grow calc"))
}

func TestLogCommandMethods(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.run(t, "log", "--no-color", "HEAD~1..HEAD")
	require.NoError(t, err)

	assert.Contains(t, out, "METHOD DIFFS:")
	assert.Contains(t, out, "sub")
	assert.NotContains(t, out, "add tests")
}

func TestDiffCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.run(t, "diff", "--no-color", "HEAD~2", "HEAD")
	require.NoError(t, err)

	assert.Contains(t, out, "NON-TEST CODE:")
	assert.NotContains(t, out, "Author:")
}

func TestDiffWorkingTree(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.WriteFile("pkg/calc.py", moduleV1)

	out, err := f.run(t, "diff", "--no-color", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "NON-TEST CODE:")
	assert.Contains(t, out, "-")
}

func TestStatsCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.run(t, "stats")
	require.NoError(t, err)

	lower := strings.ToLower(out)
	assert.Contains(t, lower, "stats after first commit")
	assert.Contains(t, lower, "stats after last commit")
	assert.Contains(t, lower, "grades")
}

func TestCSVCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dest := filepath.Join(t.TempDir(), "out.csv")

	_, err := f.run(t, "csv", "-F", `\.py\.record$`, "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	assert.Equal(t, []string{"Commit Time", "Author", "SHA", "Artifact"}, rows[0][:4])

	artifacts := map[string]bool{}
	for _, row := range rows[1:] {
		artifacts[row[3]] = true
	}

	assert.True(t, artifacts["pkg.calc.py"])
	assert.True(t, artifacts["tests.test_calc.py"])
}

func TestPlotCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dest := filepath.Join(t.TempDir(), "chart.html")

	_, err := f.run(t, "plot", "-o", dest, "--metric", "grades.A")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}

func TestPlotCommandRejectsBadMetric(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.run(t, "plot", "--metric", "lines")
	require.ErrorIs(t, err, commands.ErrInvalidMetric)
}

func TestBlastCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dest := t.TempDir()

	out, err := f.run(t, "blast", "-o", dest, f.repo.Path)
	require.NoError(t, err)
	assert.Contains(t, out, "directories updated")

	assert.FileExists(t, filepath.Join(dest, "pkg", "calc.py.record"))
	assert.FileExists(t, filepath.Join(dest, "tests", "test_calc.py.record"))
	assert.FileExists(t, filepath.Join(dest, "SUBTREE_TOTAL"))
}

func TestMissingRepository(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	root, err := commands.NewRootCommand(&out)
	require.NoError(t, err)

	root.SetArgs([]string{"-C", t.TempDir(), "-q", "verify"})
	require.ErrorIs(t, root.Execute(), commands.ErrRepositoryLoad)
}
